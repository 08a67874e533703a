// Package trace records one ordered log per turn of every unit outcome.
//
// Storage is an append-only sequence of TurnLogs keyed by turn number.
// Log may only be called between StartTurn and EndTurn, and a closed turn
// is never mutated again: GetLog and Turn hand out copies.
package trace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/loregate/internal/ir"
)

var (
	// ErrNoOpenTurn is returned by Log and EndTurn outside a turn.
	ErrNoOpenTurn = errors.New("trace: no open turn")

	// ErrTurnOpen is returned by StartTurn while another turn is open.
	ErrTurnOpen = errors.New("trace: a turn is already open")

	// ErrTurnOrder is returned by StartTurn when the turn number does not
	// follow the last recorded turn.
	ErrTurnOrder = errors.New("trace: turn numbers must increase")
)

// Sink receives closed turn logs, e.g. for archiving in the SQLite store.
type Sink interface {
	WriteTurnLog(ctx context.Context, log *ir.TurnLog) error
}

// Logger is the in-memory trace log for one session.
type Logger struct {
	mu      sync.Mutex
	session string
	logs    []*ir.TurnLog
	open    *ir.TurnLog
	sink    Sink
	flushed int // number of closed logs handed to the sink
}

// Option configures a Logger.
type Option func(*Logger)

// WithSink archives closed turns on Flush.
func WithSink(s Sink) Option {
	return func(l *Logger) {
		l.sink = s
	}
}

// NewLogger creates an empty logger for a session.
func NewLogger(session string, opts ...Option) *Logger {
	l := &Logger{session: session}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Session returns the session token stamped on every turn log.
func (l *Logger) Session() string {
	return l.session
}

// StartTurn opens a new turn.
func (l *Logger) StartTurn(turn int, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open != nil {
		return fmt.Errorf("%w: turn %d", ErrTurnOpen, l.open.Turn)
	}
	if n := len(l.logs); n > 0 && turn <= l.logs[n-1].Turn {
		return fmt.Errorf("%w: %d after %d", ErrTurnOrder, turn, l.logs[n-1].Turn)
	}
	l.open = &ir.TurnLog{
		Session: l.session,
		Turn:    turn,
		Message: message,
		Entries: []ir.LogEntry{},
	}
	return nil
}

// Log appends an entry to the open turn.
func (l *Logger) Log(entry ir.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open == nil {
		return ErrNoOpenTurn
	}
	l.open.Entries = append(l.open.Entries, entry)
	return nil
}

// EndTurn closes the open turn and appends it to the history.
func (l *Logger) EndTurn() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open == nil {
		return ErrNoOpenTurn
	}
	l.open.Closed = true
	l.logs = append(l.logs, l.open)
	l.open = nil
	return nil
}

// AbortTurn discards the open turn, if any. Used when a turn fails before
// producing a result.
func (l *Logger) AbortTurn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = nil
}

// ClearLog resets the entire history, including any open turn.
func (l *Logger) ClearLog() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = nil
	l.open = nil
	l.flushed = 0
}

// GetLog returns copies of every closed turn, oldest first.
func (l *Logger) GetLog() []*ir.TurnLog {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*ir.TurnLog, len(l.logs))
	for i, t := range l.logs {
		out[i] = t.Clone()
	}
	return out
}

// Turn returns a copy of the closed turn with the given number.
func (l *Logger) Turn(turn int) (*ir.TurnLog, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.logs {
		if t.Turn == turn {
			return t.Clone(), true
		}
	}
	return nil, false
}

// Flush hands closed turns not yet archived to the sink, in order.
// A failed write stops the flush; the remaining turns are retried on the
// next call.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sink == nil {
		l.flushed = len(l.logs)
		return nil
	}
	for l.flushed < len(l.logs) {
		t := l.logs[l.flushed]
		if err := l.sink.WriteTurnLog(ctx, t.Clone()); err != nil {
			return fmt.Errorf("archive turn %d: %w", t.Turn, err)
		}
		l.flushed++
	}
	return nil
}
