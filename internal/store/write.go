package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/loregate/internal/ir"
)

// PutSources upserts project-level source values in one transaction.
// Keys are written in sorted order; each write bumps the key's revision.
func (s *Store) PutSources(ctx context.Context, values map[string]ir.Value) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put sources: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		data, err := marshalSourceValue(values[k])
		if err != nil {
			return fmt.Errorf("put source %q: %w", k, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sources (key, value)
			VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				revision = sources.revision + 1
		`, k, data)
		if err != nil {
			return fmt.Errorf("put source %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put sources: commit: %w", err)
	}
	return nil
}

// DeleteSource removes a project-level source value. Deleting a missing key
// is not an error.
func (s *Store) DeleteSource(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete source %q: %w", key, err)
	}
	return nil
}

// WriteTurnLog archives a closed turn and its entries atomically.
//
// Uses ON CONFLICT DO NOTHING on (session, turn) for idempotency: a turn
// that is already archived is left untouched and no error is returned.
// Open turns are rejected.
func (s *Store) WriteTurnLog(ctx context.Context, log *ir.TurnLog) error {
	if log == nil {
		return fmt.Errorf("write turn log: log is nil")
	}
	if !log.Closed {
		return fmt.Errorf("write turn log: turn %d is still open", log.Turn)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write turn log: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO turn_logs (session, turn, message)
		VALUES (?, ?, ?)
		ON CONFLICT(session, turn) DO NOTHING
	`, log.Session, log.Turn, log.Message)
	if err != nil {
		return fmt.Errorf("write turn log: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write turn log: rows affected: %w", err)
	}
	if affected == 0 {
		// Already archived
		return nil
	}

	for i, e := range log.Entries {
		meta, err := marshalMetadata(e.Metadata)
		if err != nil {
			return fmt.Errorf("write turn log: entry %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO log_entries
			(session, turn, idx, name, category, passed, reason, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, log.Session, log.Turn, i, e.Name, e.Category, e.Passed, e.Reason, meta)
		if err != nil {
			return fmt.Errorf("write turn log: entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write turn log: commit: %w", err)
	}
	return nil
}
