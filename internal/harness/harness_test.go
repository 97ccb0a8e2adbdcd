package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ScenarioFiles(t *testing.T) {
	paths, err := Discover("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_StaticSingleUsesPacing(t *testing.T) {
	scenario := &Scenario{
		Name:        "static_single",
		Description: "A single reply waits out the read and typing delays",
		Start:       "2026-03-02T10:00:00Z",
		User:        UserSpec{ID: "u1", FirstName: "Ada"},
		Replies: &ReplySpec{
			Mode:   ReplyStatic,
			Single: &ReplyItem{Responder: "mentor", Content: "Nice one."},
		},
		Steps: []Step{{Send: "done with module one"}},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Event: EventAppended, Sender: "mentor", Content: "Nice one."},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 4)
	assert.Equal(t, EventAppended, result.Trace[0].Type)
	assert.Equal(t, "user", result.Trace[0].Sender)
	assert.Equal(t, EventTyping, result.Trace[1].Type)
	assert.Equal(t, "mentor", result.Trace[1].Sender)

	// 5s read delay then 8s typing delay.
	reply := result.Trace[2]
	assert.Equal(t, "m1/r0", reply.MessageID)
	assert.Equal(t, "2026-03-02T10:00:13Z", reply.At)
	assert.Equal(t, "reply", reply.Source)
	assert.Equal(t, EventIdle, result.Trace[3].Type)
}

func TestRun_StaticBurstKeepsOrder(t *testing.T) {
	scenario := &Scenario{
		Name:        "static_burst",
		Description: "Burst items append in order with their own delays",
		Start:       "2026-03-02T10:00:00Z",
		User:        UserSpec{ID: "u1"},
		Replies: &ReplySpec{
			Mode: ReplyStatic,
			Burst: []ReplyItem{
				{Responder: "priya", Content: "first", DelayMs: 200},
				{Responder: "ghost", Content: "second", DelayMs: 300},
			},
		},
		Steps: []Step{{Send: "hi all"}},
		Assertions: []Assertion{
			{Type: AssertTraceOrder, Contents: []string{"hi all", "first", "second"}},
			{Type: AssertTraceCount, Event: EventTypingCleared, Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	var appended []TraceEvent
	for _, ev := range result.Trace {
		if ev.Type == EventAppended {
			appended = append(appended, ev)
		}
	}
	require.Len(t, appended, 3)
	// 200ms, then the 1.5s burst pause, then 300ms.
	assert.Equal(t, "2026-03-02T10:00:00Z", appended[1].At)
	assert.Equal(t, "2026-03-02T10:00:02Z", appended[2].At)
	// An unknown responder keeps its key.
	assert.Equal(t, "ghost", appended[2].Sender)
}

func TestRun_ReactionToggle(t *testing.T) {
	scenario := &Scenario{
		Name:        "react",
		Description: "Selecting a reaction twice clears it",
		Start:       "2026-03-02T10:00:00Z",
		User:        UserSpec{ID: "u1"},
		Steps: []Step{
			{React: &ReactStep{Message: "d0-welcome", Kind: "like"}},
			{React: &ReactStep{Message: "d0-welcome", Kind: "like"}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: EventReaction, MessageID: "d0-welcome", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Contains(t, result.Trace[0].Counts, "choice=like")
	assert.NotContains(t, result.Trace[1].Counts, "choice=")
}

func TestRun_UnknownReactionFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_react",
		Description: "Unknown reaction kinds are rejected",
		Start:       "2026-03-02T10:00:00Z",
		User:        UserSpec{ID: "u1"},
		Steps:       []Step{{React: &ReactStep{Message: "d0-welcome", Kind: "confetti"}}},
		Assertions:  []Assertion{{Type: AssertTraceCount, Event: EventReaction, Count: 0}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1: react")
}

func TestRun_FailedAssertionFailsResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_count",
		Description: "A mismatched count fails the result",
		Start:       "2026-03-02T10:00:00Z",
		User:        UserSpec{ID: "u1"},
		Steps:       []Step{{Session: true}},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: EventStreak, Count: 2},
			{Type: AssertFinalState, Expect: map[string]any{"streak_count": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: trace_count")
}

func TestRun_EvaluateWithoutEnrollmentShowsDayZero(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/welcome_burst.yaml")
	require.NoError(t, err)
	scenario.User.Enrolled = ""
	scenario.Steps = []Step{{Evaluate: true}}
	scenario.Assertions = []Assertion{{Type: AssertTraceContains, Event: EventVisible, MessageID: "d0-welcome"}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
