package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUnit() Unit {
	return Unit{
		Key:      UnitKey(CategoryEntry, "rain"),
		Category: CategoryEntry,
		Priority: 10,
		Order:    3,
		Rule: &Rule{
			ID:       "rain",
			Keywords: []string{"rain"},
			Content:  Content{Text: "It is raining.", Target: FieldScenario},
		},
	}
}

func TestUnitIDDeterminism(t *testing.T) {
	id1, err := UnitID(testUnit())
	require.NoError(t, err)
	id2, err := UnitID(testUnit())
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "UnitID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestUnitIDIgnoresPlacement(t *testing.T) {
	a := testUnit()
	b := testUnit()
	b.Priority = 99
	b.Order = 0
	b.ID = "stale"

	assert.Equal(t, mustUnitID(t, a), mustUnitID(t, b))
}

func TestUnitIDChangesWithContent(t *testing.T) {
	a := testUnit()
	b := testUnit()
	b.Rule.Content.Text = "It is snowing."
	c := testUnit()
	c.Key = UnitKey(CategoryCue, "rain")

	assert.NotEqual(t, mustUnitID(t, a), mustUnitID(t, b))
	assert.NotEqual(t, mustUnitID(t, a), mustUnitID(t, c))
}

func TestProcedureHash(t *testing.T) {
	h1, err := ProcedureHash(ProcedureVersion, []string{"a", "b"})
	require.NoError(t, err)
	h2, err := ProcedureHash(ProcedureVersion, []string{"b", "a"})
	require.NoError(t, err)
	h3, err := ProcedureHash("2", []string{"a", "b"})
	require.NoError(t, err)
	empty, err := ProcedureHash(ProcedureVersion, nil)
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, h2, "order is part of identity")
	assert.NotEqual(t, h1, h3, "version is part of identity")
	assert.NotEqual(t, h1, empty)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"x":1}`)
	assert.NotEqual(t, hashWithDomain(DomainUnit, data), hashWithDomain(DomainProcedure, data))
}

func mustUnitID(t *testing.T, u Unit) string {
	t.Helper()
	id, err := UnitID(u)
	require.NoError(t, err)
	return id
}
