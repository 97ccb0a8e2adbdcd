package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: EventAppended, MessageID: "m1", Sender: "user", Content: "hello"},
		{Seq: 2, Type: EventTyping, Sender: "mentor"},
		{Seq: 3, Type: EventAppended, MessageID: "m1/r0", Sender: "mentor", Content: "welcome"},
		{Seq: 4, Type: EventTypingCleared},
		{Seq: 5, Type: EventAppended, MessageID: "m1/r1", Sender: "sam", Content: "hi there"},
		{Seq: 6, Type: EventIdle},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Event: EventTyping}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Event: EventAppended, Sender: "sam"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Event: EventAppended, MessageID: "m1/r0", Content: "welcome"}))

	err := assertTraceContains(trace, Assertion{Event: EventAppended, Sender: "priya"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "sender priya")
	assert.Contains(t, err.Error(), `[5] appended m1/r1 sam: "hi there"`)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Contents: []string{"hello", "welcome", "hi there"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Contents: []string{"hello", "hi there"}}))

	err := assertTraceOrder(trace, Assertion{Contents: []string{"hi there", "hello"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actual order")

	err = assertTraceOrder(trace, Assertion{Contents: []string{"hello", "bye"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing from trace: "bye"`)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Event: EventAppended, Count: 3}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: EventAppended, Sender: "mentor", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: EventMilestone, Count: 0}))

	err := assertTraceCount(trace, Assertion{Event: EventIdle, Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: 1 event(s)")
}

func TestAssertFinalState(t *testing.T) {
	state := map[string]any{
		"streak_count":    3,
		"last_visit":      "2026-03-04",
		"seen_milestones": []any{25, 50},
	}

	tests := []struct {
		name    string
		expect  map[string]any
		wantErr string
	}{
		{"int", map[string]any{"streak_count": 3}, ""},
		{"int64", map[string]any{"streak_count": int64(3)}, ""},
		{"string", map[string]any{"last_visit": "2026-03-04"}, ""},
		{"slice", map[string]any{"seen_milestones": []any{25, 50}}, ""},
		{"subset", map[string]any{"streak_count": 3, "last_visit": "2026-03-04"}, ""},
		{"wrong int", map[string]any{"streak_count": 2}, "streak_count = 3"},
		{"short slice", map[string]any{"seen_milestones": []any{25}}, "seen_milestones = [25 50]"},
		{"wrong type", map[string]any{"streak_count": "3"}, "streak_count = 3"},
		{"missing key", map[string]any{"reactions": 1}, "reactions not in final state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(state, Assertion{Type: AssertFinalState, Expect: tt.expect})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: EventIdle},
		{Type: AssertTraceCount, Event: EventIdle, Count: 5},
		{Type: AssertFinalState, Expect: map[string]any{"streak_count": 1}},
		{Type: "eventually"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Assertion failed: trace_count")
	assert.Contains(t, errs[1], "assertion[2]: final_state requires captured state")
	assert.Contains(t, errs[2], `assertion[3]: unknown assertion type "eventually"`)
}
