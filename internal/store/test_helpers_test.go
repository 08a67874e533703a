package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/loregate/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTurnLog creates a closed turn log with the given entries.
func createTestTurnLog(session string, turn int, entries ...ir.LogEntry) *ir.TurnLog {
	if entries == nil {
		entries = []ir.LogEntry{}
	}
	return &ir.TurnLog{
		Session: session,
		Turn:    turn,
		Message: "message",
		Entries: entries,
		Closed:  true,
	}
}
