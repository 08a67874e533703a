package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loregate/internal/ir"
)

func TestResolvePrecedence(t *testing.T) {
	project := NewMemoryStore(ir.Values{
		"mood":      ir.String("project"),
		"affection": ir.Int64(4),
	})
	static := ir.Values{
		"mood":      ir.String("static"),
		"affection": ir.Int64(0),
		"weather":   ir.String("clear"),
	}
	overrides := ir.Values{"mood": ir.String("override")}

	r := NewResolver(overrides, project, static)
	ctx := context.Background()

	tests := []struct {
		key  string
		want ir.Value
		tier Tier
	}{
		{"mood", ir.String("override"), TierOverride},
		{"affection", ir.Int64(4), TierProject},
		{"weather", ir.String("clear"), TierStatic},
		{"missing", nil, TierNone},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, tier, err := r.Resolve(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.tier, tier)
		})
	}
}

func TestResolveAll(t *testing.T) {
	r := NewResolver(nil, nil, ir.Values{"a": ir.Int64(1)})
	values, tiers, err := r.ResolveAll(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, ir.Values{"a": ir.Int64(1)}, values)
	assert.Equal(t, map[string]Tier{"a": TierStatic}, tiers)
}

type failingStore struct{}

func (failingStore) GetSource(context.Context, string) (ir.Value, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func (failingStore) PutSources(context.Context, map[string]ir.Value) error { return nil }

func TestResolveStoreFailure(t *testing.T) {
	r := NewResolver(nil, failingStore{}, nil)
	_, _, err := r.Resolve(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `resolve "k"`)
	assert.Contains(t, err.Error(), "disk on fire")

	_, _, err = r.ResolveAll(context.Background(), []string{"k"})
	assert.Error(t, err)
}

func TestMemoryStorePutSources(t *testing.T) {
	m := NewMemoryStore(nil)
	ctx := context.Background()
	require.NoError(t, m.PutSources(ctx, map[string]ir.Value{KeyTransient: ir.Int64(3)}))

	v, ok, err := m.GetSource(ctx, KeyTransient)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ir.Int64(3), v)

	snap := m.Snapshot()
	snap[KeyTransient] = ir.Int64(9)
	v, _, _ = m.GetSource(ctx, KeyTransient)
	assert.Equal(t, ir.Int64(3), v, "snapshot is a copy")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "field.scenario", FieldKey(ir.FieldScenario))
	assert.Equal(t, []string{"Alice", "Bob"}, SplitActors(" Alice, ,Bob "))
	assert.Nil(t, SplitActors(""))
}
