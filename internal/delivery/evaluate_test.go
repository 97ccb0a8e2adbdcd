package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cohort/internal/reply"
	"github.com/roach88/cohort/internal/script"
	"github.com/roach88/cohort/internal/store"
)

func singleReply(responder, content string) reply.Generator {
	return reply.GeneratorFunc(func(context.Context, reply.Request) (reply.Response, error) {
		return reply.Response{Single: &reply.Item{ResponderID: responder, Content: content}}, nil
	})
}

func TestEvaluate_MergesScriptAndLiveTranscript(t *testing.T) {
	h := newHarness(t, func(d *Deps, _ *Options) { d.Replies = singleReply("sam", "welcome!") })
	ctx := context.Background()

	_, err := h.o.Submit(ctx, "hi everyone")
	require.NoError(t, err)
	h.o.Wait()

	got, err := h.o.Evaluate(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"d0-welcome", "u-1", "u-1/r0"}, ids(got))
	assert.Equal(t, "Welcome, Ana!", got[0].Content)
	assert.Equal(t, SourceScript, got[0].Source)

	// Repeated evaluation, with detached writes landed, never duplicates.
	h.o.WaitDetached()
	again, err := h.o.Evaluate(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, ids(got), ids(again))
}

func TestEvaluate_RevealsOverTime(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 10, 9, 45, 0, 0, time.UTC)

	before, err := h.o.Evaluate(ctx, day1.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"d0-welcome"}, ids(before))

	after, err := h.o.Evaluate(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d0-welcome", "d1-sam"}, ids(after))

	next, ok := h.o.NextReveal(day1.Add(-time.Minute))
	require.True(t, ok)
	assert.True(t, next.Equal(day1))
}

func TestEvaluate_RehydratesPersistedHistory(t *testing.T) {
	first := newHarness(t, func(d *Deps, _ *Options) { d.Replies = singleReply("priya", "same!") })
	ctx := context.Background()
	_, err := first.o.Submit(ctx, "loving this")
	require.NoError(t, err)
	first.o.Wait()
	first.o.WaitDetached()

	second := newHarness(t, func(d *Deps, _ *Options) {
		d.Messages = first.mem
		d.Flags = first.mem
	})
	got, err := second.o.Evaluate(ctx, first.clock.Now())
	require.NoError(t, err)

	require.Equal(t, []string{"d0-welcome", "u-1", "u-1/r0"}, ids(got))
	assert.Equal(t, SourceUser, got[1].Source)
	assert.Equal(t, "Ana", got[1].SenderName)
	assert.Equal(t, SourceReply, got[2].Source)
	assert.Equal(t, "Priya", got[2].SenderName)
	assert.Equal(t, "u-1", got[2].ReplyTo)
}

func TestEvaluate_HistoryReadFailureFallsBackToCache(t *testing.T) {
	h := newHarness(t, nil)
	broken := &failingStore{Memory: h.mem, failReads: true}
	o := New(Deps{Messages: broken, Flags: broken, Clock: h.clock, Logger: quietLogger()},
		Options{Script: testScript(), User: User{ID: "user-1", FirstName: "Ana"}})
	defer o.Close()

	got, err := o.Evaluate(context.Background(), h.clock.Now())
	require.NoError(t, err)
	// Nil enrollment counts from now, so only day 0 content at or before noon.
	assert.Equal(t, []string{"d0-welcome"}, ids(got))
}

func TestEvaluate_CancelledContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.o.Evaluate(ctx, h.clock.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_EmptyScript(t *testing.T) {
	h := newHarness(t, func(_ *Deps, o *Options) { o.Script = nil })

	got, err := h.o.Evaluate(context.Background(), h.clock.Now())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMergeMessages_FirstOccurrenceWinsAndStableOrder(t *testing.T) {
	a := Message{ID: "a", Content: "a", At: noon}
	b := Message{ID: "b", Content: "b", At: noon}
	bDup := Message{ID: "b", Content: "b-dup", At: noon.Add(-time.Hour)}
	c := Message{ID: "c", Content: "c", At: noon.Add(-time.Minute)}

	got := mergeMessages([]Message{a, b}, []Message{bDup, c})
	assert.Equal(t, []string{"c", "a", "b"}, contents(got))
}

func TestFromStored_MarksFallback(t *testing.T) {
	h := newHarness(t, nil)
	m := h.o.fromStored(store.Message{ID: "u-9/fallback", Responder: script.MentorKey, Content: "x", CreatedAt: noon})
	assert.Equal(t, SourceFallback, m.Source)
	assert.True(t, m.IsMentor)
}
