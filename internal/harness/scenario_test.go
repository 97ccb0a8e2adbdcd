package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/welcome_burst.yaml")
	require.NoError(t, err)

	assert.Equal(t, "welcome_burst", s.Name)
	assert.Equal(t, "2026-03-02T10:00:00Z", s.Start)
	assert.Equal(t, "Ada", s.User.FirstName)
	assert.Equal(t, filepath.Join("..", "script", "testdata", "cohort.yaml"), s.Script)
	assert.FileExists(t, s.Script)
	require.Len(t, s.Steps, 5)
	assert.True(t, s.Steps[0].Session)
	assert.Equal(t, "hello", s.Steps[1].Send)
	require.NotNil(t, s.Steps[3].Progress)
	assert.Equal(t, 60, *s.Steps[3].Progress)
	assert.Len(t, s.Assertions, 5)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: x
description: y
start: "2026-03-02T10:00:00Z"
user: { id: u1 }
flow: []
steps: [{ session: true }]
assertions: [{ type: trace_count, event: streak, count: 1 }]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestValidateScenario(t *testing.T) {
	progress := 10
	valid := func() Scenario {
		return Scenario{
			Name:        "ok",
			Description: "ok",
			Start:       "2026-03-02T10:00:00Z",
			User:        UserSpec{ID: "u1"},
			Steps:       []Step{{Session: true}},
			Assertions:  []Assertion{{Type: AssertTraceCount, Event: EventStreak, Count: 1}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"bad start", func(s *Scenario) { s.Start = "monday" }, "start must be RFC 3339"},
		{"bad timezone", func(s *Scenario) { s.Timezone = "Mars/Olympus" }, "timezone"},
		{"missing user", func(s *Scenario) { s.User.ID = "" }, "user.id is required"},
		{"bad enrolled", func(s *Scenario) { s.User.Enrolled = "2026-03-02" }, "user.enrolled must be RFC 3339"},
		{"missing script", func(s *Scenario) { s.Script = "/does/not/exist.yaml" }, "script file not found"},
		{"no steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"empty step", func(s *Scenario) { s.Steps = []Step{{}} }, "exactly one action is required, got 0"},
		{"two actions", func(s *Scenario) { s.Steps = []Step{{Session: true, Progress: &progress}} }, "got 2"},
		{"bad advance", func(s *Scenario) { s.Steps = []Step{{Advance: "a day"}} }, "steps[0].advance"},
		{"react without kind", func(s *Scenario) { s.Steps = []Step{{React: &ReactStep{Message: "m"}}} }, "message and kind are required"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions = []Assertion{{Type: "eventually"}} }, `unknown assertion type "eventually"`},
		{"contains without event", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceContains}} }, "event is required for trace_contains"},
		{"order without contents", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceOrder}} }, "contents list is required"},
		{"negative count", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceCount, Event: "idle", Count: -1}} }, "count must be non-negative"},
		{"state without expect", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertFinalState}} }, "expect is required"},
		{"unknown reply mode", func(s *Scenario) { s.Replies = &ReplySpec{Mode: "llm"} }, `unknown mode "llm"`},
		{"static without items", func(s *Scenario) { s.Replies = &ReplySpec{Mode: ReplyStatic} }, "exactly one of single or burst"},
		{"fail with items", func(s *Scenario) {
			s.Replies = &ReplySpec{Mode: ReplyFail, Single: &ReplyItem{Responder: "mentor", Content: "x"}}
		}, "only valid in static mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := validateScenario(&s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
