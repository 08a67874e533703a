package engine

import (
	"github.com/roach88/loregate/internal/ir"
)

// Scope is everything a unit may touch while it runs: the turn's context,
// a log function, the random source and the default scan depth. Units have
// no other access to engine or project state.
type Scope struct {
	ctx       *ir.ExecutionContext
	log       func(ir.LogEntry)
	rand      Rand
	scanDepth int
	fired     *FiredSet
}

// NewScope creates a scope over ctx. A nil log discards entries, a nil rand
// draws from the global source and scanDepth <= 0 selects DefaultScanDepth.
func NewScope(ctx *ir.ExecutionContext, log func(ir.LogEntry), r Rand, scanDepth int) *Scope {
	if log == nil {
		log = func(ir.LogEntry) {}
	}
	if r == nil {
		r = globalRand{}
	}
	if scanDepth <= 0 {
		scanDepth = DefaultScanDepth
	}
	return &Scope{
		ctx:       ctx,
		log:       log,
		rand:      r,
		scanDepth: scanDepth,
		fired:     NewFiredSet(),
	}
}

// Fired reports whether the rule at path fired earlier in this pass.
// Paths are unit keys extended by index, e.g. "entry:storm/shifts[0]" or
// "cue:bard/cues[1]", so rules sharing an id or log name never collide.
func (s *Scope) Fired(path string) bool {
	return s.fired.Fired(path)
}

func (s *Scope) env() Env {
	return Env{Rand: s.rand, ScanDepth: s.scanDepth}
}

// FiredSet tracks which rule paths fired during one pass.
//
// A shift may only fire once its parent's path is in the set. The set lives
// for a single turn; a new Scope starts empty.
//
// Thread-safety: NOT thread-safe. A pass is single-threaded.
type FiredSet struct {
	fired map[string]bool
}

// NewFiredSet creates an empty fired set.
func NewFiredSet() *FiredSet {
	return &FiredSet{fired: make(map[string]bool)}
}

// Record marks path as fired. Returns false if it had already fired.
func (f *FiredSet) Record(path string) bool {
	if f.fired[path] {
		return false
	}
	f.fired[path] = true
	return true
}

// Fired reports whether path has fired.
func (f *FiredSet) Fired(path string) bool {
	return f.fired[path]
}
