package delivery

import (
	"sync"

	"github.com/roach88/cohort/internal/script"
)

// EventKind distinguishes feed events.
type EventKind int

const (
	// EventAppended carries a message newly added to the live transcript.
	EventAppended EventKind = iota + 1
	// EventTyping carries the responder now shown as typing.
	EventTyping
	// EventTypingCleared follows an append in a burst.
	EventTypingCleared
	// EventIdle marks the end of a reply sequence.
	EventIdle
	// EventMilestone carries a newly surfaced progress milestone.
	EventMilestone
	// EventStreak carries the streak after a session start.
	EventStreak
)

func (k EventKind) String() string {
	switch k {
	case EventAppended:
		return "appended"
	case EventTyping:
		return "typing"
	case EventTypingCleared:
		return "typing-cleared"
	case EventIdle:
		return "idle"
	case EventMilestone:
		return "milestone"
	case EventStreak:
		return "streak"
	default:
		return "unknown"
	}
}

// Event is one change the host surface should render.
type Event struct {
	Kind      EventKind
	Message   *Message
	Typing    *script.Sender
	Milestone int
	Streak    int
}

// Feed is a thread-safe FIFO of events for the host surface.
//
// The queue is unbounded so a delivery sequence never blocks on a slow
// renderer. A buffered signal channel of size 1 lets consumers wait with
// select alongside their own context:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-feed.Wait():
//	    for ev, ok := feed.TryNext(); ok; ev, ok = feed.TryNext() { ... }
//	}
type Feed struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Publish appends e. Returns false if the feed is closed.
func (f *Feed) Publish(e Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.events = append(f.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case f.signal <- struct{}{}:
	default:
	}
	return true
}

// TryNext removes and returns the oldest event without blocking.
func (f *Feed) TryNext() (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.events) == 0 {
		return Event{}, false
	}
	e := f.events[0]
	// Release pointers held by the vacated slot.
	f.events[0] = Event{}
	if len(f.events) == 1 {
		f.events = f.events[:0]
	} else {
		f.events = f.events[1:]
	}
	return e, true
}

// Drain removes and returns every queued event.
func (f *Feed) Drain() []Event {
	var out []Event
	for {
		e, ok := f.TryNext()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

// Wait returns a channel that signals when events may be available. It is
// closed once the feed is closed.
func (f *Feed) Wait() <-chan struct{} {
	return f.signal
}

// Len returns the number of queued events.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// Close stops accepting events and wakes any waiter. Queued events can
// still be read.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	close(f.signal)
}
