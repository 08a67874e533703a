package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loregate/internal/ir"
)

func TestReplayIdentical(t *testing.T) {
	db := seedSession(t, "s1")

	out, err := execute(t, "replay", "--library", loreDir, "--db", db, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ turn 1")
	assert.Contains(t, out, "✓ turn 2")
	assert.Contains(t, out, "✓ All 2 turn(s) identical")
}

func TestReplayDetectsChangedRules(t *testing.T) {
	db := seedSession(t, "s1")

	src, err := os.ReadFile(filepath.Join(loreDir, "lore.cue"))
	require.NoError(t, err)
	edited := strings.Replace(string(src), `keywords: ["crate"]`, `keywords: ["barrel"]`, 1)
	require.NotEqual(t, string(src), edited)
	lib := writeLibrary(t, edited)

	out, err := execute(t, "--format", "json", "replay", "--library", lib, "--db", db, "--session", "s1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Identical)
	assert.Equal(t, 1, resp.Data.Changed)
	require.Len(t, resp.Data.Turns, 2)
	assert.False(t, resp.Data.Turns[0].Changed())
	assert.Equal(t, []string{"smuggler"}, resp.Data.Turns[1].Lost)
	assert.Empty(t, resp.Data.Turns[1].Gained)
}

func TestReplayLeavesArchiveUntouched(t *testing.T) {
	db := seedSession(t, "s1")

	_, err := execute(t, "replay", "--library", loreDir, "--db", db, "--session", "s1")
	require.NoError(t, err)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "s1  2 turn(s), last turn 2")
}

func TestReplayUnknownSession(t *testing.T) {
	db := seedSession(t, "s1")

	out, err := execute(t, "replay", "--library", loreDir, "--db", db, "--session", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "No turns found for session: ghost")
}

func TestReplayRequiresSession(t *testing.T) {
	_, err := execute(t, "replay", "--library", loreDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestCompareTurns(t *testing.T) {
	was := turnLog(1, "harbor", "visits")
	now := turnLog(1, "harbor", "smuggler")

	got := compareTurns(was, now)
	assert.Equal(t, []string{"smuggler"}, got.Gained)
	assert.Equal(t, []string{"visits"}, got.Lost)
	assert.True(t, got.Changed())

	assert.False(t, compareTurns(was, was).Changed())
}

func turnLog(turn int, passedNames ...string) *ir.TurnLog {
	log := &ir.TurnLog{Session: "s", Turn: turn, Closed: true}
	for _, n := range passedNames {
		log.Entries = append(log.Entries, ir.LogEntry{Name: n, Category: ir.CategoryEntry, Passed: true})
	}
	log.Entries = append(log.Entries, ir.LogEntry{Name: "never", Category: ir.CategoryEntry, Reason: "no keyword matched"})
	return log
}
