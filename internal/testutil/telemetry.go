package testutil

import (
	"context"
	"sync"

	"github.com/roach88/cohort/internal/telemetry"
)

// RecordingSink collects tracked events. A non-nil Err is returned from
// every Track after recording.
type RecordingSink struct {
	Err error

	mu     sync.Mutex
	events []telemetry.Event
}

// Track implements telemetry.Sink.
func (s *RecordingSink) Track(_ context.Context, ev telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.Err
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []telemetry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telemetry.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns how many events named name were recorded.
func (s *RecordingSink) Count(name telemetry.Name) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}
