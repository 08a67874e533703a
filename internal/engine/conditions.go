package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/loregate/internal/ir"
)

// evalConditions joins conditions with AND (default) or OR, short-circuiting
// so later probability conditions are not drawn once the outcome is known.
// An empty list holds.
func evalConditions(s *Scope, join string, conds []ir.Condition) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}
	or := join == ir.JoinOr
	for _, c := range conds {
		ok, err := evalCondition(s, c)
		if err != nil {
			return false, err
		}
		if ok == or {
			return or, nil
		}
	}
	return !or, nil
}

// evalCondition interprets one condition of the tagged union.
func evalCondition(s *Scope, c ir.Condition) (bool, error) {
	ctx := s.ctx
	switch c.Kind {
	case ir.CondKeyword:
		depth := s.scanDepth
		if c.ScanDepth != nil {
			depth = *c.ScanDepth
		}
		_, ok := matchKeyword(c.Keywords, ctx.Window(depth))
		return ok, nil

	case ir.CondTag, ir.CondEmotion:
		if len(c.Tags) == 0 {
			return true, nil
		}
		present := presentTags(c.Tags, ctx)
		if c.Mode == ir.MatchAll {
			return len(present) == len(c.Tags), nil
		}
		return len(present) > 0, nil

	case ir.CondProbability:
		ok, _ := chance(s.rand, c.Chance)
		return ok, nil

	case ir.CondNumeric:
		return compareSource(ctx, c.Source, c.Op, c.Value)

	case ir.CondEntity:
		return slices.ContainsFunc(c.Actors, ctx.IsActive), nil

	case ir.CondIntent:
		return len(c.Intents) == 0 || slices.Contains(c.Intents, ctx.Intent), nil

	default:
		return false, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

// applyAction interprets one action of the tagged union.
func applyAction(s *Scope, a ir.Action) error {
	switch a.Kind {
	case ir.ActionAppend:
		if a.Target == "" {
			return fmt.Errorf("append action has no target field")
		}
		s.ctx.AppendField(a.Target, a.Text)
	case ir.ActionSetField:
		if a.Target == "" {
			return fmt.Errorf("set_field action has no target field")
		}
		s.ctx.SetField(a.Target, a.Text)
	case ir.ActionSetTag:
		s.ctx.AddTag(a.Tag)
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}
