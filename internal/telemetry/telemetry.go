// Package telemetry records best-effort product events. Sinks may fail; callers
// go through Send, which never lets a failure reach the user-facing path.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"
)

// Name identifies an event.
type Name string

const (
	Visit           Name = "visit"
	MessageSent     Name = "message-sent"
	ReactionToggled Name = "reaction-toggled"
	MilestoneShown  Name = "milestone-shown"
)

// Names lists every event the engine emits.
var Names = []Name{Visit, MessageSent, ReactionToggled, MilestoneShown}

// Event is one tracked occurrence with a small property bag.
type Event struct {
	Name   Name
	UserID string
	At     time.Time
	Props  map[string]string
}

// Sink receives events.
type Sink interface {
	Track(ctx context.Context, ev Event) error
}

// Discard drops every event.
type Discard struct{}

// Track implements Sink.
func (Discard) Track(context.Context, Event) error { return nil }

// LogSink writes events to a structured logger at Info.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink writing to logger (slog.Default when nil).
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Track implements Sink.
func (s *LogSink) Track(ctx context.Context, ev Event) error {
	attrs := []any{"event", string(ev.Name), "user_id", ev.UserID}
	keys := make([]string, 0, len(ev.Props))
	for k := range ev.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, ev.Props[k])
	}
	s.logger.InfoContext(ctx, "telemetry", attrs...)
	return nil
}

// Multi fans an event out to every sink. All sinks are tried; errors are
// joined.
type Multi []Sink

// Track implements Sink.
func (m Multi) Track(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Track(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send tracks ev on sink and discards any failure, logging it at Debug.
// A panicking sink is treated the same as a failing one.
func Send(ctx context.Context, sink Sink, ev Event, logger *slog.Logger) {
	if sink == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("telemetry sink panicked", "event", string(ev.Name), "panic", r)
		}
	}()
	if err := sink.Track(ctx, ev); err != nil {
		logger.Debug("telemetry dropped", "event", string(ev.Name), "error", err)
	}
}
