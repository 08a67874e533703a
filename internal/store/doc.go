// Package store provides SQLite-backed durable storage for loregate
// projects.
//
// The store holds two kinds of records:
//   - Sources: project-level source values, the middle tier of source
//     resolution. Persistent keys are written back here after every turn.
//   - Turn logs: the append-only archive of closed TurnLogs, one row per
//     turn plus one row per log entry.
//
// # Critical Patterns
//
// Logical Identity and Time
//   - Turn logs are ordered by (session, turn, idx), NEVER by timestamps
//   - A (session, turn) pair is written once; rewriting it is a no-op
//
// Deterministic Query Results
//   - Every multi-row query has a total ORDER BY
//   - Values and metadata are stored as canonical JSON
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store satisfies source.Store and trace.Sink.
package store
