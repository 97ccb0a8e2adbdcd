package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/cohort/internal/drip"
	"github.com/roach88/cohort/internal/engagement"
	"github.com/roach88/cohort/internal/script"
	"github.com/roach88/cohort/internal/store"
	"github.com/roach88/cohort/internal/testutil"
)

var (
	enrolled = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	noon     = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
)

func testScript() *script.Script {
	return &script.Script{
		Mentor: script.Persona{Key: script.MentorKey, DisplayName: "Coach Maya", AvatarRef: "avatars/maya.png"},
		Personas: script.Roster{
			{Key: "sam", DisplayName: "Sam", Class: script.ClassLeader},
			{Key: "priya", DisplayName: "Priya", Class: script.ClassBuyer},
			{Key: "theo", DisplayName: "Theo", Class: script.ClassQuestioner},
		},
		Days: []script.Day{
			{DayOffset: 0, Messages: []script.Message{
				{ID: "d0-welcome", SenderKey: script.MentorKey, Content: "Welcome, {firstName}!", DelayMinutes: 0},
			}},
			{DayOffset: 1, Messages: []script.Message{
				{ID: "d1-sam", SenderKey: "sam", Content: "Day two!", DelayMinutes: 45},
			}},
		},
		Welcome: []script.Line{
			{SenderKey: script.MentorKey, Content: "So glad you're here, {firstName}.", DelayMs: 1000},
			{SenderKey: "sam", Content: "Welcome aboard!", DelayMs: 500},
			{SenderKey: "priya", Content: "Hi from Priya!", DelayMs: 2000},
		},
		Replies: []script.Line{
			{SenderKey: "theo", Content: "Good question!"},
		},
		Fallback: &script.Line{SenderKey: "sam", Content: "Great point, {firstName}."},
	}
}

type harness struct {
	o       *Orchestrator
	clock   *testutil.FakeClock
	sleeper *testutil.RecordingSleeper
	sink    *testutil.RecordingSink
	mem     *store.Memory
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness builds an orchestrator over fakes. mutate may replace any dep
// or option before construction.
func newHarness(t *testing.T, mutate func(*Deps, *Options)) *harness {
	t.Helper()
	clock := testutil.NewFakeClock(noon)
	h := &harness{
		clock:   clock,
		sleeper: &testutil.RecordingSleeper{Clock: clock},
		sink:    &testutil.RecordingSink{},
		mem:     store.NewMemory(),
	}
	enrollment := enrolled
	deps := Deps{
		Messages:  h.mem,
		Flags:     h.mem,
		Telemetry: h.sink,
		Clock:     clock,
		Sleeper:   h.sleeper,
		Rand:      testutil.FixedRand{N: 0},
		IDs:       NewFixedGenerator("u-1", "u-2", "u-3", "u-4"),
		Logger:    quietLogger(),
	}
	opts := Options{
		Script:   testScript(),
		User:     User{ID: "user-1", FirstName: "Ana", Enrollment: &enrollment},
		Schedule: drip.DefaultSchedule(),
	}
	if mutate != nil {
		mutate(&deps, &opts)
	}
	h.o = New(deps, opts)
	t.Cleanup(func() {
		h.o.Close()
		h.o.Wait()
		h.o.WaitDetached()
	})
	return h
}

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// failingStore fails every write and, when failReads is set, every read.
type failingStore struct {
	*store.Memory
	failReads bool
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) SaveMessage(context.Context, store.Message) error { return errDiskFull }

func (f *failingStore) LoadMessages(ctx context.Context, userID string) ([]store.Message, error) {
	if f.failReads {
		return nil, errDiskFull
	}
	return f.Memory.LoadMessages(ctx, userID)
}

func (f *failingStore) SaveFlags(context.Context, string, engagement.Flags) error { return errDiskFull }

func (f *failingStore) SaveTally(context.Context, string, string, engagement.Tally) error {
	return errDiskFull
}

func (f *failingStore) LoadFlags(ctx context.Context, userID string) (engagement.Flags, error) {
	if f.failReads {
		return engagement.Flags{}, errDiskFull
	}
	return f.Memory.LoadFlags(ctx, userID)
}
