package compiler

import (
	"cmp"
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/loregate/internal/ir"
)

// Default content targets per rule category.
var defaultTargets = map[string]string{
	ir.CategoryEntry: ir.FieldScenario,
	ir.CategoryCue:   ir.FieldPersonality,
}

// Compile translates the enabled subset of a library into one ordered
// procedure.
//
// Ordering contract:
//  1. the emotion, intent and vibe stages, in that order
//  2. every other enabled rule in one combined stack, priority descending,
//     ties broken by declaration order (entries, cues, chains, groups,
//     scoring)
//
// Compile is pure: the library is not modified and compiling an unchanged
// library yields identical unit IDs and procedure hash.
func Compile(lib *ir.Library) (*ir.Procedure, error) {
	if lib == nil {
		return nil, &CompileError{Field: "library", Message: "library is nil"}
	}

	stages, err := orderStages(lib.Stages)
	if err != nil {
		return nil, err
	}

	units := make([]ir.Unit, 0, len(stages))
	for _, s := range stages {
		s := normalizeStage(s)
		units = append(units, ir.Unit{
			Key:      ir.UnitKey(ir.CategoryStage, s.ID),
			Category: ir.CategoryStage,
			Order:    len(units),
			Stage:    &s,
		})
	}

	stack := stackUnits(lib)
	slices.SortStableFunc(stack, func(a, b ir.Unit) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	units = append(units, stack...)

	proc := &ir.Procedure{Version: ir.ProcedureVersion, Units: units}
	if err := assignIdentity(proc); err != nil {
		return nil, err
	}
	return proc, nil
}

// orderStages returns exactly one definition per fixed stage, in pipeline
// order. Missing, duplicated or unknown stage ids are compile errors.
func orderStages(defs []ir.StageDef) ([]ir.StageDef, error) {
	byID := make(map[string]ir.StageDef, len(defs))
	for _, d := range defs {
		if !slices.Contains(ir.FixedStages, d.ID) {
			return nil, &CompileError{
				Field:   "stage",
				Message: fmt.Sprintf("unknown stage %q (expected one of %v)", d.ID, ir.FixedStages),
			}
		}
		if _, dup := byID[d.ID]; dup {
			return nil, &CompileError{
				Field:   "stage",
				Message: fmt.Sprintf("duplicate stage %q", d.ID),
			}
		}
		byID[d.ID] = d
	}

	out := make([]ir.StageDef, 0, len(ir.FixedStages))
	for _, id := range ir.FixedStages {
		d, ok := byID[id]
		if !ok {
			return nil, &CompileError{
				Field:   "stage",
				Message: fmt.Sprintf("missing stage %q", id),
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// stackUnits builds the unsorted combined stack in declaration order,
// skipping disabled rules.
func stackUnits(lib *ir.Library) []ir.Unit {
	var units []ir.Unit
	add := func(u ir.Unit) {
		u.Order = len(ir.FixedStages) + len(units)
		units = append(units, u)
	}

	for _, r := range lib.Entries {
		if !r.IsEnabled() {
			continue
		}
		rule := normalizeRule(r, defaultTargets[ir.CategoryEntry])
		add(ir.Unit{
			Key:      ir.UnitKey(ir.CategoryEntry, r.ID),
			Category: ir.CategoryEntry,
			Priority: r.Priority,
			Rule:     &rule,
		})
	}

	for _, c := range lib.Cues {
		if !c.IsEnabled() {
			continue
		}
		table := c
		table.Cues = make([]ir.Rule, 0, len(c.Cues))
		for _, cue := range c.Cues {
			if cue.IsEnabled() {
				table.Cues = append(table.Cues, normalizeRule(cue, defaultTargets[ir.CategoryCue]))
			}
		}
		add(ir.Unit{
			Key:      ir.UnitKey(ir.CategoryCue, c.ID),
			Category: ir.CategoryCue,
			Priority: c.Priority,
			Cue:      &table,
		})
	}

	for _, c := range lib.Chains {
		if !c.IsEnabled() {
			continue
		}
		chain := c
		chain.Blocks = make([]ir.ChainBlock, len(c.Blocks))
		for i, b := range c.Blocks {
			b.Conditions = normalizeConditions(b.Conditions)
			chain.Blocks[i] = b
		}
		add(ir.Unit{
			Key:      ir.UnitKey(ir.CategoryChain, c.ID),
			Category: ir.CategoryChain,
			Priority: c.Priority,
			Chain:    &chain,
		})
	}

	for _, g := range lib.Groups {
		if !g.IsEnabled() {
			continue
		}
		group := g
		if group.Target == "" {
			group.Target = ir.FieldScenario
		}
		add(ir.Unit{
			Key:      ir.UnitKey(ir.CategoryGroup, g.ID),
			Category: ir.CategoryGroup,
			Priority: g.Priority,
			Group:    &group,
		})
	}

	for _, s := range lib.Scoring {
		if !s.IsEnabled() {
			continue
		}
		scoring := s
		scoring.Conditions = normalizeConditions(s.Conditions)
		add(ir.Unit{
			Key:      ir.UnitKey(ir.CategoryScoring, s.ID),
			Category: ir.CategoryScoring,
			Priority: s.Priority,
			Scoring:  &scoring,
		})
	}

	return units
}

// checkUniqueKeys rejects two units sharing a key. Unit keys name log
// entries and trace paths, so they must be unique within a procedure.
func checkUniqueKeys(units []ir.Unit) error {
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if seen[u.Key] {
			return &CompileError{
				Field:   u.Key,
				Message: fmt.Sprintf("duplicate unit key %q", u.Key),
			}
		}
		seen[u.Key] = true
	}
	return nil
}

// assignIdentity computes every unit ID and the procedure hash.
func assignIdentity(proc *ir.Procedure) error {
	if err := checkUniqueKeys(proc.Units); err != nil {
		return err
	}
	ids := make([]string, len(proc.Units))
	for i := range proc.Units {
		id, err := ir.UnitID(proc.Units[i])
		if err != nil {
			return &CompileError{Field: proc.Units[i].Key, Message: err.Error()}
		}
		proc.Units[i].ID = id
		ids[i] = id
	}
	hash, err := ir.ProcedureHash(proc.Version, ids)
	if err != nil {
		return &CompileError{Field: "procedure", Message: err.Error()}
	}
	proc.Hash = hash
	return nil
}

// normalizeRule returns a copy of r with NFC keywords and the default target
// applied, recursively through its shifts. Disabled shifts are dropped.
func normalizeRule(r ir.Rule, target string) ir.Rule {
	out := r
	out.Keywords = normalizeKeywords(r.Keywords)
	if out.Content.Target == "" {
		out.Content.Target = target
	}
	if len(r.Shifts) > 0 {
		out.Shifts = make([]ir.Rule, 0, len(r.Shifts))
		for _, s := range r.Shifts {
			if s.IsEnabled() {
				out.Shifts = append(out.Shifts, normalizeRule(s, out.Content.Target))
			}
		}
		if len(out.Shifts) == 0 {
			out.Shifts = nil
		}
	}
	return out
}

func normalizeStage(s ir.StageDef) ir.StageDef {
	out := s
	if s.Signals == nil {
		return out
	}
	out.Signals = make([]ir.Signal, len(s.Signals))
	for i, sig := range s.Signals {
		sig.Keywords = normalizeKeywords(sig.Keywords)
		out.Signals[i] = sig
	}
	return out
}

func normalizeConditions(conds []ir.Condition) []ir.Condition {
	if conds == nil {
		return nil
	}
	out := make([]ir.Condition, len(conds))
	for i, c := range conds {
		c.Keywords = normalizeKeywords(c.Keywords)
		out[i] = c
	}
	return out
}

func normalizeKeywords(kws []string) []string {
	if kws == nil {
		return nil
	}
	out := make([]string, len(kws))
	for i, k := range kws {
		out[i] = norm.NFC.String(k)
	}
	return out
}
