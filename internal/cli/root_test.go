package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScript = filepath.Join("..", "script", "testdata", "cohort.yaml")

// testRootOptions skips any .env in the working directory.
func testRootOptions(format string) *RootOptions {
	return &RootOptions{Format: format}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cohort", cmd.Use)
	assert.Contains(t, cmd.Long, "COHORT_")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "reveal", "leaderboard", "chat", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestChatCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	chatCmd, _, err := cmd.Find([]string{"chat"})
	require.NoError(t, err)

	for _, name := range []string{"user-id", "first-name", "enrolled", "db", "memory", "reply-url", "metrics-addr", "percent"} {
		assert.NotNil(t, chatCmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "-1", chatCmd.Flags().Lookup("percent").DefValue)
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "--env-file", "", "validate", testScript})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseInstant(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := parseInstant("", ny, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(fallback))

	got, err = parseInstant("2026-03-02T10:00:00Z", ny, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))

	got, err = parseInstant("2026-03-02", ny, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, ny)))

	_, err = parseInstant("March 2nd", ny, fallback)
	assert.Error(t, err)
}
