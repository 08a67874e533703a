package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/queryir"
)

func seedSearch(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	ctx := context.Background()

	logs := []*ir.TurnLog{
		createTestTurnLog("s1", 1,
			ir.LogEntry{Name: "emotion", Category: "stage", Passed: true},
			ir.LogEntry{Name: "rain", Category: "entry", Passed: true, Reason: "keyword \"storm\""},
		),
		createTestTurnLog("s1", 2,
			ir.LogEntry{Name: "emotion", Category: "stage", Passed: true},
			ir.LogEntry{Name: "rain", Category: "entry", Passed: false, Reason: "no keyword"},
		),
		createTestTurnLog("s0", 1,
			ir.LogEntry{Name: "rain", Category: "entry", Passed: false, Reason: "no keyword",
				Metadata: map[string]any{"roll": 42}},
		),
	}
	logs[0].Message = "A Storm rolls in"
	logs[1].Message = "quiet now"
	for _, l := range logs {
		if err := s.WriteTurnLog(ctx, l); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestSearchEntries_All(t *testing.T) {
	s := seedSearch(t)

	got, err := s.SearchEntries(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("SearchEntries(nil) returned %d entries, want 5", len(got))
	}
	// s0 sorts before s1; entries keep their logged order inside a turn.
	if got[0].Session != "s0" || got[1].Entry.Name != "emotion" || got[2].Entry.Name != "rain" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[1].Message != "A Storm rolls in" {
		t.Errorf("Message = %q", got[1].Message)
	}
}

func TestSearchEntries_Filters(t *testing.T) {
	s := seedSearch(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter queryir.Predicate
		want   []string // session/turn/name
	}{
		{
			name:   "failed entries",
			filter: &queryir.Equals{Field: "passed", Value: ir.Boolean(false)},
			want:   []string{"s0/1/rain", "s1/2/rain"},
		},
		{
			name: "passed in one session",
			filter: &queryir.And{Predicates: []queryir.Predicate{
				&queryir.Equals{Field: "session", Value: ir.String("s1")},
				&queryir.Equals{Field: "category", Value: ir.String("entry")},
				&queryir.Equals{Field: "passed", Value: ir.Boolean(true)},
			}},
			want: []string{"s1/1/rain"},
		},
		{
			name:   "message text ignores case",
			filter: &queryir.Contains{Field: "message", Text: "storm"},
			want:   []string{"s1/1/emotion", "s1/1/rain"},
		},
		{
			name:   "reason text",
			filter: &queryir.Contains{Field: "reason", Text: "STORM"},
			want:   []string{"s1/1/rain"},
		},
		{
			name:   "metadata text",
			filter: &queryir.Contains{Field: "metadata", Text: `"roll":42`},
			want:   []string{"s0/1/rain"},
		},
		{
			name:   "turn number",
			filter: &queryir.Equals{Field: "turn", Value: ir.Int64(2)},
			want:   []string{"s1/2/emotion", "s1/2/rain"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SearchEntries(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			keys := make([]string, len(got))
			for i, o := range got {
				keys[i] = fmt.Sprintf("%s/%d/%s", o.Session, o.Turn, o.Entry.Name)
			}
			if len(keys) != len(tt.want) {
				t.Fatalf("got %v, want %v", keys, tt.want)
			}
			for i := range keys {
				if keys[i] != tt.want[i] {
					t.Errorf("got %v, want %v", keys, tt.want)
					break
				}
			}
		})
	}
}

func TestSearchEntries_Metadata(t *testing.T) {
	s := seedSearch(t)

	got, err := s.SearchEntries(context.Background(), &queryir.Equals{Field: "session", Value: ir.String("s0")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].Entry.Metadata["roll"] == nil {
		t.Errorf("Metadata = %v, want roll", got[0].Entry.Metadata)
	}
}

func TestSearchEntries_UnknownColumn(t *testing.T) {
	s := createTestStore(t)

	_, err := s.SearchEntries(context.Background(), &queryir.Equals{Field: "mood", Value: ir.String("x")})
	if err == nil {
		t.Fatal("SearchEntries() accepted an unknown column")
	}
}
