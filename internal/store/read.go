package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/loregate/internal/ir"
)

// GetSource returns a project-level source value.
// A missing key returns ok=false and no error.
func (s *Store) GetSource(ctx context.Context, key string) (ir.Value, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sources WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get source %q: %w", key, err)
	}
	v, err := unmarshalSourceValue(data)
	if err != nil {
		return nil, false, fmt.Errorf("get source %q: %w", key, err)
	}
	return v, true, nil
}

// Sources returns every project-level source value.
// Returns an empty map (not nil) if none exist.
func (s *Store) Sources(ctx context.Context) (ir.Values, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value
		FROM sources
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	values := ir.Values{}
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		v, err := unmarshalSourceValue(data)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", key, err)
		}
		values[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return values, nil
}

// LastTurn returns the highest archived turn number of a session, or 0.
// Used to resume a session's turn clock.
func (s *Store) LastTurn(ctx context.Context, session string) (int, error) {
	var turn int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(turn), 0) FROM turn_logs WHERE session = ?
	`, session).Scan(&turn)
	if err != nil {
		return 0, fmt.Errorf("last turn: %w", err)
	}
	return turn, nil
}

// ReadTurnLogs returns every archived turn of a session, oldest first.
// Entries keep their logged order.
//
// Returns an empty slice (not nil) if the session has no turns.
func (s *Store) ReadTurnLogs(ctx context.Context, session string) ([]*ir.TurnLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn, message
		FROM turn_logs
		WHERE session = ?
		ORDER BY turn ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query turn logs: %w", err)
	}
	defer rows.Close()

	logs := []*ir.TurnLog{}
	byTurn := make(map[int]*ir.TurnLog)
	for rows.Next() {
		log := &ir.TurnLog{Session: session, Entries: []ir.LogEntry{}, Closed: true}
		if err := rows.Scan(&log.Turn, &log.Message); err != nil {
			return nil, fmt.Errorf("scan turn log: %w", err)
		}
		logs = append(logs, log)
		byTurn[log.Turn] = log
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn logs: %w", err)
	}
	rows.Close()

	entries, err := s.db.QueryContext(ctx, `
		SELECT turn, name, category, passed, reason, metadata
		FROM log_entries
		WHERE session = ?
		ORDER BY turn ASC, idx ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer entries.Close()

	for entries.Next() {
		var turn int
		e, err := scanEntry(entries, &turn)
		if err != nil {
			return nil, err
		}
		if log, ok := byTurn[turn]; ok {
			log.Entries = append(log.Entries, e)
		}
	}
	if err := entries.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return logs, nil
}

// SessionSummary describes one archived session.
type SessionSummary struct {
	Session  string
	Turns    int
	LastTurn int
}

// Sessions lists archived sessions ordered by token. UUIDv7 tokens sort by
// creation time.
func (s *Store) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, COUNT(*), MAX(turn)
		FROM turn_logs
		GROUP BY session
		ORDER BY session COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionSummary{}
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.Session, &sum.Turns, &sum.LastTurn); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func scanEntry(rows *sql.Rows, turn *int) (ir.LogEntry, error) {
	var e ir.LogEntry
	var metadata string
	if err := rows.Scan(turn, &e.Name, &e.Category, &e.Passed, &e.Reason, &metadata); err != nil {
		return ir.LogEntry{}, fmt.Errorf("scan log entry: %w", err)
	}
	meta, err := unmarshalMetadata(metadata)
	if err != nil {
		return ir.LogEntry{}, err
	}
	e.Metadata = meta
	return e, nil
}
