package delivery

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/roach88/cohort/internal/drip"
	"github.com/roach88/cohort/internal/script"
	"github.com/roach88/cohort/internal/store"
)

// Evaluate returns the full visible transcript at now: scripted messages the
// drip schedule has unlocked, persisted history and the live transcript,
// deduplicated by id and ordered by time. Messages sharing an instant keep
// that source order.
//
// Evaluate is the explicit re-evaluation entry point; hosts call it on a
// timer or on demand. Repeated calls never duplicate a message.
//
// A history read failure is logged and the last successfully read history is
// used, so the call itself only fails when ctx is done.
func (o *Orchestrator) Evaluate(ctx context.Context, now time.Time) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	revealed := drip.Reveal(o.opts.Script, o.opts.User.Enrollment, now, o.opts.Schedule)
	scripted := make([]Message, len(revealed))
	for i, r := range revealed {
		scripted[i] = fromRevealed(r)
	}

	o.refreshHistory(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	return mergeMessages(scripted, o.persisted, o.transcript), nil
}

// NextReveal reports when the next scripted message unlocks after now.
func (o *Orchestrator) NextReveal(now time.Time) (time.Time, bool) {
	return drip.NextReveal(o.opts.Script, o.opts.User.Enrollment, now, o.opts.Schedule)
}

// refreshHistory reloads persisted messages.
func (o *Orchestrator) refreshHistory(ctx context.Context) {
	rows, err := o.deps.Messages.LoadMessages(ctx, o.opts.User.ID)
	if err != nil {
		o.deps.Logger.Warn("history load failed, using cached history",
			"user_id", o.opts.User.ID, "error", err)
		return
	}
	history := make([]Message, 0, len(rows))
	for _, row := range rows {
		history = append(history, o.fromStored(row))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.persisted = history
	for _, m := range history {
		if m.Source == SourceUser {
			o.userMsgs[m.ID] = struct{}{}
		}
	}
}

func (o *Orchestrator) fromStored(row store.Message) Message {
	if row.Responder == "" {
		m := fromSender(row.ID, o.userSender(), row.Content, row.CreatedAt, SourceUser)
		m.ReplyTo = row.ReplyTo
		return m
	}
	src := SourceReply
	if row.Responder == script.MentorKey && strings.HasSuffix(row.ID, "/fallback") {
		src = SourceFallback
	}
	m := fromSender(row.ID, o.opts.Script.Resolve(row.Responder), row.Content, row.CreatedAt, src)
	m.ReplyTo = row.ReplyTo
	return m
}

// mergeMessages concatenates groups, keeps the first occurrence of each id
// and stable-sorts by time.
func mergeMessages(groups ...[]Message) []Message {
	seen := make(map[string]struct{})
	out := []Message{}
	for _, g := range groups {
		for _, m := range g {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out
}
