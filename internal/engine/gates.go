package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/loregate/internal/ir"
)

// Gate names reported in GateResult.Gate.
const (
	GateKeyword     = "keyword"
	GateRequireTags = "require_tags"
	GateBlockTags   = "block_tags"
	GateEntity      = "entity"
	GateEmotion     = "emotion"
	GateEros        = "eros"
	GateIntent      = "intent"
	GateNumeric     = "numeric"
	GateProbability = "probability"
)

// Env carries the evaluator's external inputs.
type Env struct {
	Rand      Rand
	ScanDepth int // default keyword scan depth; <= 0 means DefaultScanDepth
}

// GateResult is the outcome of evaluating a rule's gates.
// Gate names the failing gate and is empty when every gate passed.
type GateResult struct {
	Passed bool
	Reason string
	Gate   string
}

// Evaluate tests a rule's gates against ctx.
//
// Gates run in a fixed order and evaluation stops at the first failure:
//
//	keyword, require tags, block tags, entity, emotion, eros, intent,
//	numeric, probability
//
// The probability gate runs last so a rule that fails a deterministic gate
// never consumes a random draw. Evaluate reads ctx and never mutates it.
func Evaluate(rule *ir.Rule, ctx *ir.ExecutionContext, env Env) GateResult {
	checks := []struct {
		gate string
		fn   func() (bool, string)
	}{
		{GateKeyword, func() (bool, string) { return keywordGate(rule, ctx, env) }},
		{GateRequireTags, func() (bool, string) { return requireGate(rule.RequireTags, ctx) }},
		{GateBlockTags, func() (bool, string) { return blockGate(rule.BlockTags, ctx) }},
		{GateEntity, func() (bool, string) { return entityGate(rule.Gates, ctx) }},
		{GateEmotion, func() (bool, string) { return emotionGate(rule.Gates, ctx) }},
		{GateEros, func() (bool, string) { return erosGate(rule.Gates, ctx) }},
		{GateIntent, func() (bool, string) { return intentGate(rule.Gates, ctx) }},
		{GateNumeric, func() (bool, string) { return numericGates(rule.Gates, ctx) }},
		{GateProbability, func() (bool, string) { return probabilityGate(rule.Chance(), env) }},
	}
	for _, c := range checks {
		if ok, reason := c.fn(); !ok {
			return GateResult{Reason: reason, Gate: c.gate}
		}
	}
	return GateResult{Passed: true, Reason: "all gates passed"}
}

func (env Env) depth() int {
	if env.ScanDepth <= 0 {
		return DefaultScanDepth
	}
	return env.ScanDepth
}

func (env Env) rand() Rand {
	if env.Rand == nil {
		return globalRand{}
	}
	return env.Rand
}

func keywordGate(rule *ir.Rule, ctx *ir.ExecutionContext, env Env) (bool, string) {
	if len(rule.Keywords) == 0 {
		return true, ""
	}
	depth := rule.Depth(env.depth())
	if _, ok := matchKeyword(rule.Keywords, ctx.Window(depth)); !ok {
		return false, fmt.Sprintf("no keyword found in last %d messages: %s",
			depth, strings.Join(rule.Keywords, ", "))
	}
	return true, ""
}

func requireGate(m ir.TagMatch, ctx *ir.ExecutionContext) (bool, string) {
	if len(m.Tags) == 0 {
		return true, ""
	}
	if m.All() {
		if missing := missingTags(m.Tags, ctx); len(missing) > 0 {
			return false, "missing required tags: " + strings.Join(missing, ", ")
		}
		return true, ""
	}
	if len(presentTags(m.Tags, ctx)) == 0 {
		return false, "none of required tags present: " + strings.Join(m.Tags, ", ")
	}
	return true, ""
}

func blockGate(m ir.TagMatch, ctx *ir.ExecutionContext) (bool, string) {
	if len(m.Tags) == 0 {
		return true, ""
	}
	present := presentTags(m.Tags, ctx)
	if m.All() {
		if len(present) == len(m.Tags) {
			return false, "all blocked tags present: " + strings.Join(m.Tags, ", ")
		}
		return true, ""
	}
	if len(present) > 0 {
		return false, "blocked tag present: " + strings.Join(present, ", ")
	}
	return true, ""
}

func entityGate(g *ir.GateBundle, ctx *ir.ExecutionContext) (bool, string) {
	if g == nil || g.Entity == nil || len(g.Entity.Actors) == 0 {
		return true, ""
	}
	if !slices.ContainsFunc(g.Entity.Actors, ctx.IsActive) {
		return false, "no active actor among: " + strings.Join(g.Entity.Actors, ", ")
	}
	return true, ""
}

func emotionGate(g *ir.GateBundle, ctx *ir.ExecutionContext) (bool, string) {
	if g == nil || g.Emotion == nil {
		return true, ""
	}
	e := g.Emotion
	if len(e.AndAny) > 0 && len(presentTags(e.AndAny, ctx)) == 0 {
		return false, "none of emotions present: " + strings.Join(e.AndAny, ", ")
	}
	if missing := missingTags(e.AndAll, ctx); len(missing) > 0 {
		return false, "missing emotions: " + strings.Join(missing, ", ")
	}
	if present := presentTags(e.NotAny, ctx); len(present) > 0 {
		return false, "excluded emotion present: " + strings.Join(present, ", ")
	}
	if len(e.NotAll) > 0 && len(presentTags(e.NotAll, ctx)) == len(e.NotAll) {
		return false, "all excluded emotions present: " + strings.Join(e.NotAll, ", ")
	}
	return true, ""
}

func erosGate(g *ir.GateBundle, ctx *ir.ExecutionContext) (bool, string) {
	if g == nil || g.Eros == nil {
		return true, ""
	}
	e := g.Eros
	if e.Min != nil && ctx.Transient < *e.Min {
		return false, fmt.Sprintf("transient vibe %d below minimum %d", ctx.Transient, *e.Min)
	}
	if e.Max != nil && ctx.Transient > *e.Max {
		return false, fmt.Sprintf("transient vibe %d above maximum %d", ctx.Transient, *e.Max)
	}
	if e.LongTermMin != nil && ctx.Cumulative < *e.LongTermMin {
		return false, fmt.Sprintf("cumulative vibe %d below minimum %d", ctx.Cumulative, *e.LongTermMin)
	}
	return true, ""
}

func intentGate(g *ir.GateBundle, ctx *ir.ExecutionContext) (bool, string) {
	if g == nil || g.Intent == nil || len(g.Intent.Allow) == 0 {
		return true, ""
	}
	if !slices.Contains(g.Intent.Allow, ctx.Intent) {
		return false, fmt.Sprintf("intent %q not in: %s", ctx.Intent, strings.Join(g.Intent.Allow, ", "))
	}
	return true, ""
}

func numericGates(g *ir.GateBundle, ctx *ir.ExecutionContext) (bool, string) {
	if g == nil {
		return true, ""
	}
	for _, n := range g.Numeric {
		ok, err := compareSource(ctx, n.Source, n.Op, n.Value)
		if err != nil {
			return false, err.Error()
		}
		if !ok {
			v, _ := numericSource(ctx, n.Source)
			return false, fmt.Sprintf("%s is %d, want %s %d", n.Source, v, n.Op, n.Value)
		}
	}
	return true, ""
}

func probabilityGate(percent int, env Env) (bool, string) {
	ok, u := chance(env.rand(), percent)
	if ok {
		return true, ""
	}
	if u < 0 {
		return false, fmt.Sprintf("probability %d never fires", percent)
	}
	return false, fmt.Sprintf("roll %.2f not below probability %d", u, percent)
}

// numericSource reads a derived metric or an integer source value.
// A source that no tier defines reads as 0.
func numericSource(ctx *ir.ExecutionContext, key string) (int, error) {
	if strings.HasPrefix(key, "metric.") {
		v, ok := ctx.Metric(key)
		if !ok {
			return 0, fmt.Errorf("unknown metric %q", key)
		}
		return v, nil
	}
	v, ok := ctx.Sources[key]
	if !ok {
		return 0, nil
	}
	n, ok := ir.AsInt(v)
	if !ok {
		return 0, fmt.Errorf("source %q is not an integer", key)
	}
	return n, nil
}

func compareSource(ctx *ir.ExecutionContext, key, op string, want int) (bool, error) {
	got, err := numericSource(ctx, key)
	if err != nil {
		return false, err
	}
	switch op {
	case ir.OpGTE:
		return got >= want, nil
	case ir.OpLTE:
		return got <= want, nil
	case ir.OpEQ:
		return got == want, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// presentTags returns the tags of want present in ctx, in want order.
func presentTags(want []string, ctx *ir.ExecutionContext) []string {
	var out []string
	for _, t := range want {
		if ctx.HasTag(t) {
			out = append(out, t)
		}
	}
	return out
}

func missingTags(want []string, ctx *ir.ExecutionContext) []string {
	var out []string
	for _, t := range want {
		if !ctx.HasTag(t) {
			out = append(out, t)
		}
	}
	return out
}
