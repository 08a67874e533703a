package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/loregate/internal/testutil"
)

func TestChance_CertainOutcomesDoNotDraw(t *testing.T) {
	r := testutil.NewScriptedRand(0.5)

	ok, u := chance(r, 100)
	assert.True(t, ok)
	assert.Equal(t, -1.0, u)

	ok, _ = chance(r, 0)
	assert.False(t, ok)
	ok, _ = chance(r, -5)
	assert.False(t, ok)

	assert.Equal(t, 0, r.Calls())
}

func TestChance_DrawsBelowPercent(t *testing.T) {
	r := testutil.NewScriptedRand(0.2, 0.8)

	ok, u := chance(r, 50)
	assert.True(t, ok)
	assert.InDelta(t, 20.0, u, 1e-9)

	ok, u = chance(r, 50)
	assert.False(t, ok)
	assert.InDelta(t, 80.0, u, 1e-9)
}

func TestSeededRand_Reproducible(t *testing.T) {
	a, b := NewSeededRand(99), NewSeededRand(99)
	for range 20 {
		v := a.Float64()
		assert.Equal(t, v, b.Float64())
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestGlobalRand_InRange(t *testing.T) {
	for range 100 {
		u := roll(globalRand{})
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 100.0)
	}
}
