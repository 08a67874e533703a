package store

import (
	"context"
	"fmt"

	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/queryir"
	"github.com/roach88/loregate/internal/querysql"
)

// TraceSchema lists the queryable columns of the trace archive.
var TraceSchema = queryir.Schema{
	"turn_logs":   {"session", "turn", "message"},
	"log_entries": {"session", "turn", "idx", "name", "category", "passed", "reason", "metadata"},
}

// RuleOutcome is one archived log entry with the turn it was logged in.
type RuleOutcome struct {
	Session string
	Turn    int
	Message string
	Entry   ir.LogEntry
}

// entrySearch joins each log entry to its turn so filters may reference the
// user message as well as entry columns.
func entrySearch(filter queryir.Predicate) *queryir.Join {
	return &queryir.Join{
		Left: &queryir.Select{
			From:    "log_entries",
			Columns: []string{"session", "turn", "name", "category", "passed", "reason", "metadata"},
		},
		Right: &queryir.Select{
			From:    "turn_logs",
			Columns: []string{"message"},
		},
		Using:   []string{"session", "turn"},
		Filter:  filter,
		OrderBy: []string{"session", "turn", "idx"},
	}
}

// SearchEntries returns every archived log entry matching filter, ordered by
// session, turn and log position. A nil filter matches every entry.
// Filters may reference any TraceSchema column. metadata holds canonical
// JSON, so Contains on it matches against the encoded text.
func (s *Store) SearchEntries(ctx context.Context, filter queryir.Predicate) ([]RuleOutcome, error) {
	sqlText, params, err := querysql.NewSQLCompiler(TraceSchema).Compile(entrySearch(filter))
	if err != nil {
		return nil, fmt.Errorf("entry search: %w", err)
	}

	rows, err := s.Query(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("search log entries: %w", err)
	}
	defer rows.Close()

	out := []RuleOutcome{}
	for rows.Next() {
		var o RuleOutcome
		var metadata string
		if err := rows.Scan(&o.Session, &o.Turn, &o.Entry.Name, &o.Entry.Category,
			&o.Entry.Passed, &o.Entry.Reason, &metadata, &o.Message); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		if o.Entry.Metadata, err = unmarshalMetadata(metadata); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return out, nil
}

// RuleHistory returns every archived outcome of the named rule or shift,
// ordered by session, turn and log position.
func (s *Store) RuleHistory(ctx context.Context, name string) ([]RuleOutcome, error) {
	return s.SearchEntries(ctx, &queryir.Equals{Field: "name", Value: ir.String(name)})
}
