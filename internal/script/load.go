package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Load error codes.
const (
	ErrCodeNotFound    = "E001" // script file missing or unreadable
	ErrCodeUnsupported = "E002" // unknown file extension
	ErrCodeParse       = "E003" // malformed YAML or CUE
	ErrCodeInvalid     = "E004" // parsed but failed validation
)

// LoadError reports a script that could not be loaded.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
	// Errors holds every validation failure when Code is ErrCodeInvalid.
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ParseFile reads and decodes a script file without validating it.
// The format is chosen by extension: .yaml/.yml or .cue.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "read script", Err: err}
	}

	var s *Script
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err = ParseYAML(data)
	case ".cue":
		s, err = ParseCUE(data, path)
	default:
		return nil, &LoadError{
			Code:    ErrCodeUnsupported,
			Path:    path,
			Message: fmt.Sprintf("unsupported script extension %q (want .yaml, .yml or .cue)", filepath.Ext(path)),
		}
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, err
	}
	return s, nil
}

// ParseYAML decodes a YAML script. Unknown fields are rejected so that typos
// like "delayMinutes:" fail loudly instead of silently revealing at minute 0.
func ParseYAML(data []byte) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeParse, Message: "empty script document"}
		}
		return nil, &LoadError{Code: ErrCodeParse, Message: "parse YAML", Err: err}
	}
	finalize(&s)
	return &s, nil
}

// ParseCUE decodes a CUE script. The personas struct is walked field by field
// so declaration order becomes roster order.
func ParseCUE(data []byte, filename string) (*Script, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: "compile CUE", Err: err}
	}

	var s Script
	if err := v.Decode(&s); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: "decode CUE", Err: err}
	}

	personas := v.LookupPath(cue.ParsePath("personas"))
	if personas.Exists() {
		iter, err := personas.Fields()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeParse, Message: "personas must be a struct", Err: err}
		}
		for iter.Next() {
			var p Persona
			if err := iter.Value().Decode(&p); err != nil {
				return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("decode persona %q", iter.Label()), Err: err}
			}
			p.Key = iter.Label()
			s.Personas = append(s.Personas, p)
		}
	}

	finalize(&s)
	return &s, nil
}

// finalize applies load-time normalization shared by every format.
func finalize(s *Script) {
	s.Mentor.Key = MentorKey
	// Authored order within a day is preserved; only days are reordered.
	sort.SliceStable(s.Days, func(i, j int) bool {
		return s.Days[i].DayOffset < s.Days[j].DayOffset
	})
}

// Load parses and validates a script file.
func Load(path string) (*Script, error) {
	s, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	if errs := Validate(s); len(errs) > 0 {
		return nil, &LoadError{
			Code:    ErrCodeInvalid,
			Path:    path,
			Message: fmt.Sprintf("%d validation error(s), first: %s", len(errs), errs[0].Error()),
			Errors:  errs,
		}
	}
	return s, nil
}

// LoadOrEmpty loads a script and degrades to Empty on any failure. A broken
// script must never take down the surface; it only hides scripted content.
func LoadOrEmpty(path string, logger *slog.Logger) *Script {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := Load(path)
	if err != nil {
		logger.Error("script unavailable, revealing nothing", "path", path, "error", err)
		return Empty()
	}
	logger.Info("script loaded",
		"path", path,
		"personas", len(s.Personas),
		"days", len(s.Days),
		"messages", s.MessageCount(),
		"fingerprint", s.Fingerprint()[:12],
	)
	return s
}
