package delivery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/roach88/cohort/internal/engagement"
	"github.com/roach88/cohort/internal/progress"
	"github.com/roach88/cohort/internal/store"
	"github.com/roach88/cohort/internal/telemetry"
)

// loadFlags returns the latest known flags. The store is read once; after
// that the orchestrator, as the only writer, works from its own snapshot so
// a failed save never lets a transition apply twice.
func (o *Orchestrator) loadFlags(ctx context.Context) (engagement.Flags, error) {
	o.mu.Lock()
	cached := o.flags
	o.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	f, err := o.deps.Flags.LoadFlags(ctx, o.opts.User.ID)
	if errors.Is(err, store.ErrNotFound) {
		return engagement.Flags{}, nil
	}
	if err != nil {
		return engagement.Flags{}, fmt.Errorf("load flags: %w", err)
	}
	return f, nil
}

func (o *Orchestrator) saveFlags(ctx context.Context, f engagement.Flags) {
	o.mu.Lock()
	o.flags = &f
	o.mu.Unlock()
	if err := o.deps.Flags.SaveFlags(ctx, o.opts.User.ID, f); err != nil {
		o.deps.Logger.Warn("flag save failed", "user_id", o.opts.User.ID, "error", err)
	}
}

// StartSession applies the visit streak transition for today and rehydrates
// the persisted history. Only the first call per orchestrator advances the
// streak; later calls return the session's flags unchanged.
//
// A flag load failure is returned and nothing is written, so a broken store
// never resets a streak. A save failure is logged only.
func (o *Orchestrator) StartSession(ctx context.Context) (engagement.Flags, error) {
	o.flagMu.Lock()
	defer o.flagMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return engagement.Flags{}, ErrClosed
	}
	if o.sessionStarted {
		f := engagement.Flags{}
		if o.flags != nil {
			f = *o.flags
		}
		o.mu.Unlock()
		return f, nil
	}
	o.mu.Unlock()

	o.refreshHistory(ctx)

	prior, err := o.loadFlags(ctx)
	if err != nil {
		return engagement.Flags{}, err
	}
	now := o.deps.Clock.Now()
	today := engagement.DateOf(now, o.opts.Schedule.Location)
	next, changed := engagement.AdvanceStreak(prior, today)
	if changed {
		o.saveFlags(ctx, next)
	}

	o.mu.Lock()
	o.sessionStarted = true
	o.flags = &next
	o.mu.Unlock()

	o.deps.Logger.Info("session started",
		"user_id", o.opts.User.ID, "streak", next.StreakCount, "last_visit", next.LastVisit.String())
	o.feed.Publish(Event{Kind: EventStreak, Streak: next.StreakCount})
	o.track(ctx, telemetry.Event{
		Name:  telemetry.Visit,
		Props: map[string]string{"streak": strconv.Itoa(next.StreakCount), "date": today.String()},
	})
	return next, nil
}

// CheckMilestone evaluates percent against the user's seen milestones. At
// most one milestone surfaces per call; it is recorded before being
// returned, so the same threshold never surfaces twice.
func (o *Orchestrator) CheckMilestone(ctx context.Context, percent int) (int, bool, error) {
	o.flagMu.Lock()
	defer o.flagMu.Unlock()

	if o.isClosed() {
		return 0, false, ErrClosed
	}
	prior, err := o.loadFlags(ctx)
	if err != nil {
		return 0, false, err
	}
	milestone, next, ok := o.opts.Milestones.Next(prior, percent)
	if !ok {
		return 0, false, nil
	}
	o.saveFlags(ctx, next)

	o.deps.Logger.Info("milestone reached", "user_id", o.opts.User.ID, "milestone", milestone, "percent", percent)
	o.feed.Publish(Event{Kind: EventMilestone, Milestone: milestone})
	o.track(ctx, telemetry.Event{
		Name:  telemetry.MilestoneShown,
		Props: map[string]string{"milestone": strconv.Itoa(milestone), "percent": strconv.Itoa(percent)},
	})
	return milestone, true, nil
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Reactions returns the tally of messageID as seen by the user. Messages the
// user never reacted to show their seeded baseline.
func (o *Orchestrator) Reactions(ctx context.Context, messageID string) (engagement.Tally, error) {
	t, err := o.deps.Flags.LoadTally(ctx, o.opts.User.ID, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return engagement.SeedTally(messageID, o.opts.ReactionKinds), nil
	}
	if err != nil {
		return engagement.Tally{}, fmt.Errorf("load tally: %w", err)
	}
	return t, nil
}

// ToggleReaction applies the user selecting kind on messageID and persists
// the new snapshot. A save failure is logged; the returned tally is what the
// user sees either way.
func (o *Orchestrator) ToggleReaction(ctx context.Context, messageID string, kind engagement.Kind) (engagement.Tally, error) {
	if !slices.Contains(o.opts.ReactionKinds, kind) {
		return engagement.Tally{}, fmt.Errorf("%w: %q", ErrUnknownReaction, kind)
	}
	if messageID == "" {
		return engagement.Tally{}, fmt.Errorf("toggle reaction: message id is required")
	}

	o.flagMu.Lock()
	defer o.flagMu.Unlock()

	if o.isClosed() {
		return engagement.Tally{}, ErrClosed
	}
	prior, err := o.Reactions(ctx, messageID)
	if err != nil {
		return engagement.Tally{}, err
	}
	next := prior.Toggle(kind)
	if err := o.deps.Flags.SaveTally(ctx, o.opts.User.ID, messageID, next); err != nil {
		o.deps.Logger.Warn("tally save failed",
			"user_id", o.opts.User.ID, "message_id", messageID, "error", err)
	}

	o.track(ctx, telemetry.Event{
		Name: telemetry.ReactionToggled,
		Props: map[string]string{
			"message_id": messageID,
			"kind":       string(kind),
			"selected":   strconv.FormatBool(next.Choice == kind),
		},
	})
	return next, nil
}

// Leaderboard ranks the personas at now together with the user's own
// percent, which comes from the course-progress source.
func (o *Orchestrator) Leaderboard(now time.Time, userPercent int) []progress.Standing {
	name := o.opts.User.FirstName
	if name == "" {
		name = "You"
	}
	user := progress.Standing{EntityID: o.opts.User.ID, DisplayName: name, Value: userPercent}
	return o.opts.Progress.Leaderboard(o.opts.Script.Personas, o.elapsedDays(now), &user)
}
