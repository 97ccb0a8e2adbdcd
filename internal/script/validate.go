package script

import (
	"fmt"
	"strings"
)

// Validation error codes (S101-S199).
const (
	ErrNegativeDayOffset  = "S101" // dayOffset < 0
	ErrDuplicateDayOffset = "S102" // two days share an offset
	ErrNegativeDelay      = "S103" // delayMinutesFromDayStart < 0
	ErrDuplicateMessageID = "S104" // message id used twice
	ErrUnknownClass       = "S105" // personalityClass not in the known set
	ErrEmptyContent       = "S106" // message or line without content
	ErrMentorName         = "S107" // mentor displayName missing
	ErrNegativeBurstDelay = "S108" // welcome/replies delayMs < 0
)

// ValidationError describes one problem in a script.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a parsed script and returns every error found.
// It does not fail fast. Unknown sender keys are not errors: they render
// with a label derived from the key.
func Validate(s *Script) []ValidationError {
	if s == nil {
		return []ValidationError{{Field: "script", Message: "script is nil", Code: ErrEmptyContent}}
	}

	var errs []ValidationError

	if strings.TrimSpace(s.Mentor.DisplayName) == "" {
		errs = append(errs, ValidationError{
			Field:   "mentor.displayName",
			Message: "mentor display name is required",
			Code:    ErrMentorName,
		})
	}

	for _, p := range s.Personas {
		if !p.Class.Valid() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("personas.%s.personalityClass", p.Key),
				Message: fmt.Sprintf("unknown personality class %q (want one of %v)", p.Class, Classes),
				Code:    ErrUnknownClass,
			})
		}
	}

	seenOffsets := make(map[int]bool)
	seenIDs := make(map[string]string)
	for i, d := range s.Days {
		field := fmt.Sprintf("days[%d]", i)
		if d.DayOffset < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".dayOffset",
				Message: fmt.Sprintf("day offset must be >= 0, got %d", d.DayOffset),
				Code:    ErrNegativeDayOffset,
			})
		}
		if seenOffsets[d.DayOffset] {
			errs = append(errs, ValidationError{
				Field:   field + ".dayOffset",
				Message: fmt.Sprintf("day offset %d declared more than once", d.DayOffset),
				Code:    ErrDuplicateDayOffset,
			})
		}
		seenOffsets[d.DayOffset] = true

		for j, m := range d.Messages {
			mfield := fmt.Sprintf("%s.messages[%d]", field, j)
			if m.DelayMinutes < 0 {
				errs = append(errs, ValidationError{
					Field:   mfield + ".delayMinutesFromDayStart",
					Message: fmt.Sprintf("delay must be >= 0, got %d", m.DelayMinutes),
					Code:    ErrNegativeDelay,
				})
			}
			if strings.TrimSpace(m.Content) == "" {
				errs = append(errs, ValidationError{
					Field:   mfield + ".content",
					Message: "content is required",
					Code:    ErrEmptyContent,
				})
			}
			if m.ID == "" {
				continue
			}
			if prev, dup := seenIDs[m.ID]; dup {
				errs = append(errs, ValidationError{
					Field:   mfield + ".id",
					Message: fmt.Sprintf("id %q already used at %s", m.ID, prev),
					Code:    ErrDuplicateMessageID,
				})
				continue
			}
			seenIDs[m.ID] = mfield
		}
	}

	errs = append(errs, validateLines("welcome", s.Welcome)...)
	errs = append(errs, validateLines("replies", s.Replies)...)
	if s.Fallback != nil {
		errs = append(errs, validateLines("fallback", []Line{*s.Fallback})...)
	}

	return errs
}

func validateLines(section string, lines []Line) []ValidationError {
	var errs []ValidationError
	for i, l := range lines {
		field := fmt.Sprintf("%s[%d]", section, i)
		if strings.TrimSpace(l.Content) == "" {
			errs = append(errs, ValidationError{Field: field + ".content", Message: "content is required", Code: ErrEmptyContent})
		}
		if l.DelayMs < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".delayMs",
				Message: fmt.Sprintf("delay must be >= 0, got %d", l.DelayMs),
				Code:    ErrNegativeBurstDelay,
			})
		}
	}
	return errs
}
