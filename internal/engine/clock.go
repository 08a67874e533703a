package engine

import "sync/atomic"

// Clock numbers turns with a monotonic logical counter.
//
// Turn numbers are strictly increasing for one session, so trace logs can
// be keyed by them. NEVER derive turn order from wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	turn atomic.Int64
}

// NewClock creates a new clock starting at 0; the first turn is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after turn start.
// Used to continue a session whose turns are already archived.
func NewClockAt(start int) *Clock {
	c := &Clock{}
	c.turn.Store(int64(start))
	return c
}

// Next returns the next turn number and advances the clock.
func (c *Clock) Next() int {
	return int(c.turn.Add(1))
}

// Current returns the last issued turn number without advancing.
func (c *Clock) Current() int {
	return int(c.turn.Load())
}
