package engine

import "math/rand/v2"

// Rand is the randomness source for probability draws.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// NewSeededRand returns a deterministic source for reproducible turns.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// globalRand draws from the auto-seeded math/rand/v2 source.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// roll draws U ~ Uniform[0,100).
func roll(r Rand) float64 {
	return 100 * r.Float64()
}

// chance reports whether a percent chance succeeds, drawing only when the
// outcome is not already certain. The roll is -1 when no draw happened.
func chance(r Rand, percent int) (bool, float64) {
	switch {
	case percent >= 100:
		return true, -1
	case percent <= 0:
		return false, -1
	}
	u := roll(r)
	return u < float64(percent), u
}
