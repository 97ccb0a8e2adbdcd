package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPacing shrinks every wait so a reply sequence finishes immediately.
func fastPacing(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"COHORT_READ_DELAY_MIN":   "0s",
		"COHORT_READ_DELAY_MAX":   "1ms",
		"COHORT_TYPING_DELAY_MIN": "0s",
		"COHORT_TYPING_DELAY_MAX": "1ms",
		"COHORT_BURST_PAUSE":      "0s",
		"COHORT_FALLBACK_DELAY":   "0s",
		"COHORT_SEED":             "1",
	} {
		t.Setenv(k, v)
	}
}

func runChatCommand(t *testing.T, input string, args ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewChatCommand(testRootOptions("text"))
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestChat_Session(t *testing.T) {
	fastPacing(t)

	out := runChatCommand(t,
		"hello\nwhat next?\n/react d0-welcome like\n/board\n/progress 60\n/nope\n/quit\nignored\n",
		testScript, "--memory", "--user-id", "u1", "--first-name", "Ada",
		"--enrolled", "2026-03-02", "--percent", "30",
	)

	assert.Contains(t, out, "streak: 1 day(s)")
	assert.Contains(t, out, "milestone reached: 25%")
	assert.Contains(t, out, "Welcome to the cohort, Ada!")

	// First send gets the welcome burst, in authored order.
	assert.Contains(t, out, "Coach Maya is typing...")
	welcome := strings.Index(out, "So glad you're here, Ada.")
	aboard := strings.Index(out, "Welcome aboard!")
	require.NotEqual(t, -1, welcome)
	require.NotEqual(t, -1, aboard)
	assert.Less(t, welcome, aboard)

	// The script has no replies, so the second send falls back.
	assert.Contains(t, out, "Great point, Ada. Let me think on that.")

	assert.Contains(t, out, "d0-welcome: like=")
	assert.Contains(t, out, "(you: like)")
	assert.Contains(t, out, "<- you")
	assert.Contains(t, out, "milestone reached: 50%")
	assert.Contains(t, out, "unknown command /nope")
	assert.NotContains(t, out, "ignored")
}

func TestChat_PersistsAcrossRuns(t *testing.T) {
	fastPacing(t)
	db := filepath.Join(t.TempDir(), "cohort.db")
	args := []string{testScript, "--db", db, "--user-id", "u1", "--first-name", "Ada", "--enrolled", "2026-03-02", "--percent", "80"}

	first := runChatCommand(t, "remember me\n", args...)
	assert.Contains(t, first, "milestone reached: 75%")

	second := runChatCommand(t, "/quit\n", args...)
	assert.Contains(t, second, "Ada: remember me")
	assert.Contains(t, second, "So glad you're here, Ada.")
	assert.Contains(t, second, "streak: 1 day(s)")
	assert.NotContains(t, second, "milestone reached")
}

func TestChat_BrokenScriptStillRuns(t *testing.T) {
	fastPacing(t)

	out := runChatCommand(t, "anyone here?\n",
		filepath.Join(t.TempDir(), "missing.yaml"), "--memory", "--first-name", "Ada")

	// The empty script still answers with the default mentor fallback.
	assert.Contains(t, out, "Mentor: Thanks for sharing, Ada!")
}

func TestChat_BadEnrollment(t *testing.T) {
	cmd := NewChatCommand(testRootOptions("text"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{testScript, "--memory", "--enrolled", "soon"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
