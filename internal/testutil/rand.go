package testutil

import "sync"

// ScriptedRand replays a fixed sequence of Float64 draws, cycling when the
// script runs out.
//
// Unlike engine.NewSeededRand, the draws are chosen by the test, so a
// probability gate's outcome is known in advance.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedRand struct {
	mu     sync.Mutex
	values []float64
	idx    int
	calls  int
}

// NewScriptedRand creates a rand that returns values in order.
// Each value must lie in [0, 1). With no values every draw returns 0.
func NewScriptedRand(values ...float64) *ScriptedRand {
	return &ScriptedRand{values: values}
}

// NewStratifiedRand returns n evenly spaced draws i/n for i in [0, n).
// Over one full cycle a weighted pick selects each item exactly in
// proportion to its weight.
func NewStratifiedRand(n int) *ScriptedRand {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i) / float64(n)
	}
	return NewScriptedRand(values...)
}

// Float64 returns the next scripted value.
func (r *ScriptedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.idx]
	r.idx = (r.idx + 1) % len(r.values)
	return v
}

// Calls returns how many draws have been made.
func (r *ScriptedRand) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Reset rewinds the script and the call count.
//
// Used for test reuse. After Reset(), the next draw is the first value again.
func (r *ScriptedRand) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idx = 0
	r.calls = 0
}
