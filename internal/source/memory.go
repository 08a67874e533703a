package source

import (
	"context"
	"maps"
	"sync"

	"github.com/roach88/loregate/internal/ir"
)

// MemoryStore is an in-memory project store.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]ir.Value
}

// NewMemoryStore creates a store seeded with values.
func NewMemoryStore(values ir.Values) *MemoryStore {
	m := make(map[string]ir.Value, len(values))
	maps.Copy(m, values)
	return &MemoryStore{values: m}
}

// GetSource implements Store.
func (m *MemoryStore) GetSource(_ context.Context, key string) (ir.Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// PutSources implements Store.
func (m *MemoryStore) PutSources(_ context.Context, values map[string]ir.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.values, values)
	return nil
}

// Snapshot returns a copy of the stored values.
func (m *MemoryStore) Snapshot() ir.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(ir.Values(m.values))
}
