// Package drip turns the authored script into the feed a user sees.
//
// Reveal is a pure function of (script, enrollment instant, now). It owns no
// timers and keeps no state: a message missing on one evaluation appears on a
// later one simply because now moved past its reveal instant. Hosts may call
// it on page load, on a ticker, or at the instant returned by NextReveal.
//
// Reveal instant for a scripted message:
//
//	date(enrollment, loc) + dayOffset days, at RevealHour:00 local, + delay minutes
//
// A day unlocks once dayOffset <= min(elapsedDays, DayCap). Output is ordered
// by reveal instant; ties keep authored order.
package drip

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/cohort/internal/script"
)

const (
	// DefaultDayCap is the last day offset that ever unlocks.
	DefaultDayCap = 30
	// DefaultRevealHour is the local hour each script day starts at.
	DefaultRevealHour = 9
)

// Schedule holds the clock parameters of a reveal.
type Schedule struct {
	DayCap     int
	RevealHour int
	Location   *time.Location
	Vars       script.Vars
}

// DefaultSchedule returns the standard schedule in UTC.
func DefaultSchedule() Schedule {
	return Schedule{
		DayCap:     DefaultDayCap,
		RevealHour: DefaultRevealHour,
		Location:   time.UTC,
	}
}

func (s Schedule) normalized() Schedule {
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.DayCap < 0 {
		s.DayCap = 0
	}
	if s.RevealHour < 0 {
		s.RevealHour = 0
	}
	if s.RevealHour > 23 {
		s.RevealHour = 23
	}
	return s
}

// Revealed is one visible scripted message. It is recomputed on every
// evaluation; ID is its only identity.
type Revealed struct {
	ID           string            `json:"id"`
	SenderKey    string            `json:"senderKey"`
	SenderName   string            `json:"senderName"`
	SenderAvatar string            `json:"senderAvatar,omitempty"`
	SenderKind   script.SenderKind `json:"senderKind"`
	Content      string            `json:"content"`
	ScheduledAt  time.Time         `json:"scheduledAt"`
	IsMentor     bool              `json:"isMentor"`
	DayOffset    int               `json:"dayOffset"`
}

// civil returns midnight UTC of t's calendar date in loc. Working on UTC
// midnights keeps day arithmetic free of DST gaps.
func civil(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ElapsedDays counts calendar days in loc from enrollment to now.
// Clock skew that puts now before enrollment yields 0.
func ElapsedDays(enrollment, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	days := int(civil(now, loc).Sub(civil(enrollment, loc)) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

// DayStart is the instant script day offset begins for an enrollment.
func DayStart(enrollment time.Time, offset int, sched Schedule) time.Time {
	sched = sched.normalized()
	y, m, d := enrollment.In(sched.Location).Date()
	return time.Date(y, m, d+offset, sched.RevealHour, 0, 0, 0, sched.Location)
}

// RevealAt is the absolute reveal instant of a message on day offset.
func RevealAt(enrollment time.Time, offset int, msg script.Message, sched Schedule) time.Time {
	return DayStart(enrollment, offset, sched).Add(time.Duration(msg.DelayMinutes) * time.Minute)
}

// MessageID returns the authored id or a positional one for unnamed messages.
func MessageID(offset, index int, msg script.Message) string {
	if msg.ID != "" {
		return msg.ID
	}
	return fmt.Sprintf("d%d-m%d", offset, index)
}

// orderedDays returns the days sorted by offset without touching the script.
func orderedDays(s *script.Script) []script.Day {
	days := make([]script.Day, len(s.Days))
	copy(days, s.Days)
	sort.SliceStable(days, func(i, j int) bool { return days[i].DayOffset < days[j].DayOffset })
	return days
}

func start(enrollment *time.Time, now time.Time) time.Time {
	if enrollment == nil || enrollment.IsZero() {
		return now
	}
	return *enrollment
}

// Reveal returns the scripted messages visible at now, oldest first.
// A nil enrollment is treated as now. A nil script reveals nothing.
func Reveal(s *script.Script, enrollment *time.Time, now time.Time, sched Schedule) []Revealed {
	out := []Revealed{}
	if s == nil {
		return out
	}
	sched = sched.normalized()
	enrolled := start(enrollment, now)

	horizon := ElapsedDays(enrolled, now, sched.Location)
	if horizon > sched.DayCap {
		horizon = sched.DayCap
	}

	for _, day := range orderedDays(s) {
		if day.DayOffset < 0 || day.DayOffset > horizon {
			continue
		}
		for i, msg := range day.Messages {
			at := RevealAt(enrolled, day.DayOffset, msg, sched)
			if at.After(now) {
				continue
			}
			sender := s.Resolve(msg.SenderKey)
			out = append(out, Revealed{
				ID:           MessageID(day.DayOffset, i, msg),
				SenderKey:    msg.SenderKey,
				SenderName:   sender.Name,
				SenderAvatar: sender.Avatar,
				SenderKind:   sender.Kind,
				Content:      script.Substitute(msg.Content, sched.Vars),
				ScheduledAt:  at,
				IsMentor:     sender.Kind == script.SenderMentor,
				DayOffset:    day.DayOffset,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

// NextReveal returns the earliest reveal instant after now within the day
// cap. ok is false once everything within the cap is visible.
func NextReveal(s *script.Script, enrollment *time.Time, now time.Time, sched Schedule) (next time.Time, ok bool) {
	if s == nil {
		return time.Time{}, false
	}
	sched = sched.normalized()
	enrolled := start(enrollment, now)

	for _, day := range s.Days {
		if day.DayOffset < 0 || day.DayOffset > sched.DayCap {
			continue
		}
		for _, msg := range day.Messages {
			at := RevealAt(enrolled, day.DayOffset, msg, sched)
			if !at.After(now) {
				continue
			}
			if !ok || at.Before(next) {
				next, ok = at, true
			}
		}
	}
	return next, ok
}
