package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

const sessionScenario = `name: %s
description: "A first session starts a streak"
start: "2026-03-02T10:00:00Z"
user: { id: u1 }
steps:
  - session: true
assertions:
  - type: trace_count
    event: streak
    count: %d
`

func writeTestScenario(t *testing.T, dir, name string, streaks int) string {
	t.Helper()
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	path := filepath.Join(scenarios, name+".yaml")
	content := []byte(fmt.Sprintf(sessionScenario, name, streaks))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return scenarios
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(testRootOptions(format))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommand_AllPass(t *testing.T) {
	out, err := runTestCommand(t, "text", testScenarios)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ welcome_burst")
	assert.Contains(t, out, "✓ generator_down")
	assert.Contains(t, out, "✓ streak_and_milestones")
	assert.Contains(t, out, "3 passed, 0 failed, 3 total")
}

func TestTestCommand_FilterJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", testScenarios, "--filter", "streak*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "streak_and_milestones", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := writeTestScenario(t, t.TempDir(), "broken", 2)

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "Assertion failed: trace_count")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	root := t.TempDir()
	dir := writeTestScenario(t, root, "fresh", 1)

	_, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	golden := filepath.Join(root, "golden", "fresh.golden")
	require.FileExists(t, golden)

	_, err = runTestCommand(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_EmptyDirectory(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_CommandErrors(t *testing.T) {
	_, err := runTestCommand(t, "text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeScenario)

	_, err = runTestCommand(t, "text", testScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
