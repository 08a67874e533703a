// Package source resolves named source values for a turn.
//
// Every value is looked up through three tiers, highest first:
//
//	per-turn override > project-level default > static default
//
// The project tier is an external Store (the SQLite store in production,
// MemoryStore in tests). Values written back after a turn land in the
// project tier, so they win over static defaults on the next turn.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/loregate/internal/ir"
)

// Well-known source keys read while assembling a context.
const (
	KeyFieldPrefix  = "field."
	KeyActiveActors = "active_actors"
	KeyTransient    = "vibe.transient"
	KeyCumulative   = "vibe.cumulative"
)

// FieldKey returns the source key holding the initial value of a field.
func FieldKey(name string) string {
	return KeyFieldPrefix + name
}

// SplitActors parses the comma separated active_actors value.
func SplitActors(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Tier names the resolution tier a value came from.
type Tier string

const (
	TierNone     Tier = ""
	TierOverride Tier = "override"
	TierProject  Tier = "project"
	TierStatic   Tier = "static"
)

// Store is the project-level default store.
type Store interface {
	GetSource(ctx context.Context, key string) (ir.Value, bool, error)
	PutSources(ctx context.Context, values map[string]ir.Value) error
}

// Resolver looks up source values with override > project > static precedence.
type Resolver struct {
	overrides ir.Values
	project   Store
	static    ir.Values
}

// NewResolver creates a resolver. Any tier may be nil.
func NewResolver(overrides ir.Values, project Store, static ir.Values) *Resolver {
	return &Resolver{overrides: overrides, project: project, static: static}
}

// Resolve returns the value for key and the tier it came from.
// A missing key returns TierNone and a nil value; only store failures are
// errors.
func (r *Resolver) Resolve(ctx context.Context, key string) (ir.Value, Tier, error) {
	if v, ok := r.overrides[key]; ok {
		return v, TierOverride, nil
	}
	if r.project != nil {
		v, ok, err := r.project.GetSource(ctx, key)
		if err != nil {
			return nil, TierNone, fmt.Errorf("resolve %q: %w", key, err)
		}
		if ok {
			return v, TierProject, nil
		}
	}
	if v, ok := r.static[key]; ok {
		return v, TierStatic, nil
	}
	return nil, TierNone, nil
}

// ResolveAll resolves every key, skipping keys no tier defines.
func (r *Resolver) ResolveAll(ctx context.Context, keys []string) (ir.Values, map[string]Tier, error) {
	values := make(ir.Values, len(keys))
	tiers := make(map[string]Tier, len(keys))
	for _, k := range keys {
		v, tier, err := r.Resolve(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		if tier == TierNone {
			continue
		}
		values[k] = v
		tiers[k] = tier
	}
	return values, tiers, nil
}
