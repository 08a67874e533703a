package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loregate/internal/ir"
)

func TestLoggerTurnLifecycle(t *testing.T) {
	l := NewLogger("session-1")

	require.NoError(t, l.StartTurn(1, "hello"))
	require.NoError(t, l.Log(ir.LogEntry{Name: "rain", Category: ir.CategoryEntry, Passed: true, Reason: "all gates passed"}))
	require.NoError(t, l.Log(ir.LogEntry{Name: "fog", Category: ir.CategoryEntry, Reason: "no keyword matched"}))
	require.NoError(t, l.EndTurn())

	logs := l.GetLog()
	require.Len(t, logs, 1)
	assert.Equal(t, "session-1", logs[0].Session)
	assert.Equal(t, 1, logs[0].Turn)
	assert.Equal(t, "hello", logs[0].Message)
	assert.True(t, logs[0].Closed)
	assert.Equal(t, []string{"rain"}, logs[0].PassedNames())
}

func TestLoggerMisuse(t *testing.T) {
	l := NewLogger("s")

	assert.ErrorIs(t, l.Log(ir.LogEntry{Name: "x"}), ErrNoOpenTurn)
	assert.ErrorIs(t, l.EndTurn(), ErrNoOpenTurn)

	require.NoError(t, l.StartTurn(1, "a"))
	assert.ErrorIs(t, l.StartTurn(2, "b"), ErrTurnOpen)
	require.NoError(t, l.EndTurn())

	assert.ErrorIs(t, l.StartTurn(1, "again"), ErrTurnOrder)
	assert.ErrorIs(t, l.Log(ir.LogEntry{Name: "late"}), ErrNoOpenTurn, "closed turn accepts no entries")
}

func TestLoggerClosedTurnsImmutable(t *testing.T) {
	l := NewLogger("s")
	require.NoError(t, l.StartTurn(1, "a"))
	require.NoError(t, l.Log(ir.LogEntry{Name: "rain", Passed: true, Metadata: map[string]any{"k": "v"}}))
	require.NoError(t, l.EndTurn())

	got := l.GetLog()
	got[0].Entries[0].Passed = false
	got[0].Entries[0].Metadata["k"] = "changed"
	got[0].Entries = append(got[0].Entries, ir.LogEntry{Name: "injected"})

	again, ok := l.Turn(1)
	require.True(t, ok)
	require.Len(t, again.Entries, 1)
	assert.True(t, again.Entries[0].Passed)
	assert.Equal(t, "v", again.Entries[0].Metadata["k"])
}

func TestLoggerClearAndAbort(t *testing.T) {
	l := NewLogger("s")
	require.NoError(t, l.StartTurn(1, "a"))
	require.NoError(t, l.EndTurn())

	require.NoError(t, l.StartTurn(2, "b"))
	l.AbortTurn()
	assert.Len(t, l.GetLog(), 1, "aborted turn is discarded")
	assert.ErrorIs(t, l.Log(ir.LogEntry{}), ErrNoOpenTurn)

	l.ClearLog()
	assert.Empty(t, l.GetLog())
	require.NoError(t, l.StartTurn(1, "fresh start"), "turn order resets with the history")
	_, ok := l.Turn(2)
	assert.False(t, ok)
}

type recordingSink struct {
	turns []int
	fail  bool
}

func (s *recordingSink) WriteTurnLog(_ context.Context, log *ir.TurnLog) error {
	if s.fail {
		return errors.New("unavailable")
	}
	s.turns = append(s.turns, log.Turn)
	return nil
}

func TestLoggerFlush(t *testing.T) {
	sink := &recordingSink{fail: true}
	l := NewLogger("s", WithSink(sink))
	ctx := context.Background()

	for turn := 1; turn <= 2; turn++ {
		require.NoError(t, l.StartTurn(turn, "m"))
		require.NoError(t, l.EndTurn())
	}

	err := l.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive turn 1")

	sink.fail = false
	require.NoError(t, l.Flush(ctx))
	require.NoError(t, l.Flush(ctx))
	assert.Equal(t, []int{1, 2}, sink.turns, "each turn archived once")
}
