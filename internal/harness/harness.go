package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/cohort/internal/delivery"
	"github.com/roach88/cohort/internal/drip"
	"github.com/roach88/cohort/internal/engagement"
	"github.com/roach88/cohort/internal/reply"
	"github.com/roach88/cohort/internal/script"
	"github.com/roach88/cohort/internal/store"
	"github.com/roach88/cohort/internal/testutil"
)

// errGeneratorDown is returned by the "fail" reply mode.
var errGeneratorDown = errors.New("reply generator unavailable")

// Harness executes one scenario against a fresh orchestrator.
type Harness struct {
	store  *store.Store
	orch   *delivery.Orchestrator
	clock  *testutil.FakeClock
	loc    *time.Location
	userID string
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. A step that cannot be
// executed at all (bad duration, closed orchestrator) returns an error;
// behavior that differs from the assertions only fails the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(scenario, st)
	if err != nil {
		return nil, err
	}
	defer func() {
		h.orch.Close()
		h.orch.WaitDetached()
	}()

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i+1, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	if err := h.captureState(ctx); err != nil {
		return nil, err
	}

	actx := &AssertionContext{State: h.result.State}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}
	return h.result, nil
}

func newHarness(scenario *Scenario, st *store.Store) (*Harness, error) {
	s := script.Empty()
	if scenario.Script != "" {
		loaded, err := script.Load(scenario.Script)
		if err != nil {
			return nil, fmt.Errorf("load script: %w", err)
		}
		s = loaded
	}

	loc := time.UTC
	if scenario.Timezone != "" {
		l, err := time.LoadLocation(scenario.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		loc = l
	}
	start, err := time.Parse(time.RFC3339, scenario.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	user := delivery.User{ID: scenario.User.ID, FirstName: scenario.User.FirstName}
	if scenario.User.Enrolled != "" {
		enrolled, err := time.Parse(time.RFC3339, scenario.User.Enrolled)
		if err != nil {
			return nil, fmt.Errorf("enrolled: %w", err)
		}
		user.Enrollment = &enrolled
	}

	clock := testutil.NewFakeClock(start)
	sched := drip.DefaultSchedule()
	sched.Location = loc

	o := delivery.New(delivery.Deps{
		Replies:  replies(scenario.Replies, s),
		Messages: st,
		Flags:    st,
		Clock:    clock,
		Sleeper:  &testutil.RecordingSleeper{Clock: clock},
		Rand:     testutil.FixedRand{},
		IDs:      delivery.NewFixedGenerator(messageIDs(scenario.Steps)...),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, delivery.Options{
		Script:   s,
		User:     user,
		Schedule: sched,
		Pacing:   delivery.DefaultPacing(),
	})

	return &Harness{
		store:  st,
		orch:   o,
		clock:  clock,
		loc:    loc,
		userID: scenario.User.ID,
		result: NewResult(),
	}, nil
}

// messageIDs returns one sequential id per send step.
func messageIDs(steps []Step) []string {
	var ids []string
	for _, s := range steps {
		if s.Send != "" {
			ids = append(ids, fmt.Sprintf("m%d", len(ids)+1))
		}
	}
	return ids
}

func replies(rs *ReplySpec, s *script.Script) reply.Generator {
	if rs == nil {
		return reply.NewScripted(s)
	}
	switch rs.Mode {
	case ReplyFail:
		return reply.GeneratorFunc(func(context.Context, reply.Request) (reply.Response, error) {
			return reply.Response{}, errGeneratorDown
		})
	case ReplyStatic:
		resp := reply.Response{}
		if rs.Single != nil {
			item := toItem(*rs.Single)
			resp.Single = &item
		}
		for _, b := range rs.Burst {
			resp.Burst = append(resp.Burst, toItem(b))
		}
		return reply.GeneratorFunc(func(context.Context, reply.Request) (reply.Response, error) {
			return resp, nil
		})
	default:
		return reply.NewScripted(s)
	}
}

func toItem(r ReplyItem) reply.Item {
	return reply.Item{ResponderID: r.Responder, Content: r.Content, DelayMs: r.DelayMs}
}

func (h *Harness) execute(ctx context.Context, n int, step Step) error {
	switch {
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
	case step.Session:
		if _, err := h.orch.StartSession(ctx); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
	case step.Send != "":
		if _, err := h.orch.Submit(ctx, step.Send); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		h.orch.Wait()
		h.orch.WaitDetached()
	case step.Progress != nil:
		if _, _, err := h.orch.CheckMilestone(ctx, *step.Progress); err != nil {
			return fmt.Errorf("progress: %w", err)
		}
	case step.React != nil:
		t, err := h.orch.ToggleReaction(ctx, step.React.Message, engagement.Kind(step.React.Kind))
		if err != nil {
			return fmt.Errorf("react: %w", err)
		}
		h.result.add(n, TraceEvent{Type: EventReaction, MessageID: step.React.Message, Counts: formatTally(t)})
	case step.Evaluate:
		msgs, err := h.orch.Evaluate(ctx, h.clock.Now())
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		// Events queued by earlier actions come first.
		h.drain(n)
		for _, m := range msgs {
			h.result.add(n, h.messageEvent(EventVisible, m))
		}
		return nil
	}
	h.drain(n)
	return nil
}

// drain moves every queued feed event into the trace.
func (h *Harness) drain(step int) {
	for _, ev := range h.orch.Events().Drain() {
		switch ev.Kind {
		case delivery.EventAppended:
			h.result.add(step, h.messageEvent(EventAppended, *ev.Message))
		case delivery.EventTyping:
			h.result.add(step, TraceEvent{Type: EventTyping, Sender: ev.Typing.Key})
		case delivery.EventTypingCleared:
			h.result.add(step, TraceEvent{Type: EventTypingCleared})
		case delivery.EventIdle:
			h.result.add(step, TraceEvent{Type: EventIdle})
		case delivery.EventMilestone:
			h.result.add(step, TraceEvent{Type: EventMilestone, Milestone: ev.Milestone})
		case delivery.EventStreak:
			h.result.add(step, TraceEvent{Type: EventStreak, Streak: ev.Streak})
		}
	}
}

func (h *Harness) messageEvent(typ string, m delivery.Message) TraceEvent {
	return TraceEvent{
		Type:      typ,
		At:        m.At.In(h.loc).Format(time.RFC3339),
		MessageID: m.ID,
		Sender:    m.SenderKey,
		Content:   m.Content,
		Source:    string(m.Source),
	}
}

// captureState reads the persisted flags into the result.
func (h *Harness) captureState(ctx context.Context) error {
	f, err := h.store.LoadFlags(ctx, h.userID)
	if errors.Is(err, store.ErrNotFound) {
		f = engagement.Flags{}
	} else if err != nil {
		return fmt.Errorf("load final flags: %w", err)
	}
	seen := make([]any, len(f.SeenMilestones))
	for i, m := range f.SeenMilestones {
		seen[i] = m
	}
	h.result.State["streak_count"] = f.StreakCount
	h.result.State["last_visit"] = f.LastVisit.String()
	h.result.State["seen_milestones"] = seen
	return nil
}

func formatTally(t engagement.Tally) string {
	parts := make([]string, 0, len(engagement.DefaultKinds)+1)
	for _, k := range engagement.DefaultKinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, t.Count(k)))
	}
	if t.Choice != "" {
		parts = append(parts, "choice="+string(t.Choice))
	}
	return strings.Join(parts, " ")
}
