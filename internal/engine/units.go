package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/loregate/internal/ir"
)

// Vibe track bounds.
const (
	VibeMin = 0
	VibeMax = 10
)

// RunUnit executes one procedure unit inside s. Outcomes are written to the
// scope's log. A returned error means the unit itself failed; the caller
// records it and moves on.
func RunUnit(s *Scope, u ir.Unit) error {
	switch {
	case u.Stage != nil:
		return runStage(s, u.Stage)
	case u.Rule != nil:
		fireRule(s, u.Key, u.Rule.ID, ir.CategoryEntry, u.Rule)
		return nil
	case u.Cue != nil:
		runCueTable(s, u.Key, u.Cue)
		return nil
	case u.Chain != nil:
		return runChain(s, u.Chain)
	case u.Group != nil:
		return runGroup(s, u.Group)
	case u.Scoring != nil:
		return runScoring(s, u.Scoring)
	default:
		return fmt.Errorf("unit %s has no payload", u.Key)
	}
}

// unitName is the log entry name for a unit.
func unitName(u ir.Unit) string {
	_, id, ok := strings.Cut(u.Key, ":")
	if !ok {
		return u.Key
	}
	return id
}

func runStage(s *Scope, st *ir.StageDef) error {
	ctx := s.ctx
	entry := ir.LogEntry{Name: st.ID, Category: ir.CategoryStage, Passed: true}

	switch st.ID {
	case ir.StageEmotion:
		var emitted []string
		for _, sig := range st.Signals {
			if _, ok := matchKeyword(sig.Keywords, ctx.UserText); ok && ctx.AddTag(sig.Emit) {
				emitted = append(emitted, sig.Emit)
			}
		}
		if len(emitted) == 0 {
			entry.Reason = "no emotion signal matched"
		} else {
			entry.Reason = "emitted " + strings.Join(emitted, ", ")
			entry.Metadata = map[string]any{"tags": emitted}
		}

	case ir.StageIntent:
		entry.Reason = "no intent signal matched"
		for _, sig := range st.Signals {
			if _, ok := matchKeyword(sig.Keywords, ctx.UserText); ok {
				ctx.Intent = sig.Emit
				entry.Reason = "intent " + sig.Emit
				break
			}
		}

	case ir.StageVibe:
		transient := ctx.Transient - st.Decay
		cumulative := ctx.Cumulative
		for _, sig := range st.Signals {
			if _, ok := matchKeyword(sig.Keywords, ctx.UserText); ok {
				transient += sig.Delta
				cumulative += sig.LongTermDelta
			}
		}
		ctx.Transient = clamp(transient)
		ctx.Cumulative = clamp(cumulative)
		entry.Reason = fmt.Sprintf("transient %d, cumulative %d", ctx.Transient, ctx.Cumulative)
		entry.Metadata = map[string]any{"transient": ctx.Transient, "cumulative": ctx.Cumulative}

	default:
		return fmt.Errorf("unknown stage %q", st.ID)
	}

	s.log(entry)
	return nil
}

func clamp(v int) int {
	return min(max(v, VibeMin), VibeMax)
}

// fireRule evaluates a rule and, when it passes, injects its content and
// emits its tags. Its shifts are then considered in declaration order.
// path identifies the rule within the procedure; name is what the log shows.
func fireRule(s *Scope, path, name, category string, r *ir.Rule) bool {
	res := Evaluate(r, s.ctx, s.env())
	entry := ir.LogEntry{Name: name, Category: category, Passed: res.Passed, Reason: res.Reason}
	if res.Passed {
		if r.Content.Text != "" {
			s.ctx.AppendField(r.Content.Target, r.Content.Text)
		}
		var emitted []string
		for _, t := range r.EmitTags {
			if s.ctx.AddTag(t) {
				emitted = append(emitted, t)
			}
		}
		entry.Metadata = map[string]any{"target": r.Content.Target}
		if len(emitted) > 0 {
			entry.Metadata["tags"] = emitted
		}
		s.fired.Record(path)
	} else {
		entry.Metadata = map[string]any{"gate": res.Gate}
	}
	s.log(entry)

	for i := range r.Shifts {
		runShift(s, path, name, i, &r.Shifts[i])
	}
	return res.Passed
}

// runShift fires the i-th shift of the rule at parentPath only if that rule
// fired earlier in this pass.
func runShift(s *Scope, parentPath, parentName string, i int, shift *ir.Rule) {
	path := fmt.Sprintf("%s/shifts[%d]", parentPath, i)
	name := parentName + "/" + shift.ID
	if s.Fired(parentPath) {
		fireRule(s, path, name, ir.CategoryShift, shift)
		return
	}
	s.log(ir.LogEntry{
		Name:     name,
		Category: ir.CategoryShift,
		Reason:   "parent rule did not fire",
		Metadata: map[string]any{"parent": parentName},
	})
	for j := range shift.Shifts {
		runShift(s, path, name, j, &shift.Shifts[j])
	}
}

func runCueTable(s *Scope, key string, t *ir.CueTable) {
	for i := range t.Cues {
		cue := &t.Cues[i]
		path := fmt.Sprintf("%s/cues[%d]", key, i)
		name := t.ID + "/" + cue.ID
		if !s.ctx.IsActive(t.Actor) {
			s.log(ir.LogEntry{
				Name:     name,
				Category: ir.CategoryCue,
				Reason:   fmt.Sprintf("actor %q is not active", t.Actor),
				Metadata: map[string]any{"gate": GateEntity},
			})
			continue
		}
		fireRule(s, path, name, ir.CategoryCue, cue)
	}
}

func runChain(s *Scope, c *ir.LogicChain) error {
	for i, b := range c.Blocks {
		ok := true
		if b.Kind != ir.BlockElse {
			var err error
			if ok, err = evalConditions(s, b.Join, b.Conditions); err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
		}
		if !ok {
			continue
		}
		for _, a := range b.Actions {
			if err := applyAction(s, a); err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
		}
		s.log(ir.LogEntry{
			Name:     c.ID,
			Category: ir.CategoryChain,
			Passed:   true,
			Reason:   fmt.Sprintf("%s block %d matched", b.Kind, i),
			Metadata: map[string]any{"block": i},
		})
		return nil
	}
	s.log(ir.LogEntry{Name: c.ID, Category: ir.CategoryChain, Reason: "no block matched"})
	return nil
}

func runGroup(s *Scope, g *ir.ProbabilityGroup) error {
	entry := ir.LogEntry{Name: g.ID, Category: ir.CategoryGroup}
	ok, u := chance(s.rand, g.TriggerChance)
	if !ok {
		if u < 0 {
			entry.Reason = fmt.Sprintf("trigger chance %d never fires", g.TriggerChance)
		} else {
			entry.Reason = fmt.Sprintf("trigger roll %.2f not below %d", u, g.TriggerChance)
		}
		s.log(entry)
		return nil
	}

	item, err := pickWeighted(s.rand, g.Items)
	if err != nil {
		return err
	}
	if item.Text != "" {
		s.ctx.AppendField(g.Target, item.Text)
	}
	entry.Passed = true
	entry.Reason = "selected " + item.Name
	entry.Metadata = map[string]any{"item": item.Name}
	s.log(entry)
	return nil
}

// pickWeighted makes a single weighted draw. Items with a non-positive
// weight are never selected.
func pickWeighted(r Rand, items []ir.WeightedItem) (ir.WeightedItem, error) {
	total := 0
	for _, it := range items {
		if it.Weight > 0 {
			total += it.Weight
		}
	}
	if total == 0 {
		return ir.WeightedItem{}, fmt.Errorf("group has no item with positive weight")
	}

	point := roll(r) / 100 * float64(total)
	acc := 0
	for _, it := range items {
		if it.Weight <= 0 {
			continue
		}
		acc += it.Weight
		if point < float64(acc) {
			return it, nil
		}
	}
	// point is below total for any Float64 in [0,1)
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Weight > 0 {
			return items[i], nil
		}
	}
	return ir.WeightedItem{}, fmt.Errorf("group has no item with positive weight")
}

func runScoring(s *Scope, r *ir.ScoringRule) error {
	ok, err := evalConditions(s, r.Join, r.Conditions)
	if err != nil {
		return err
	}
	if !ok {
		s.log(ir.LogEntry{Name: r.ID, Category: ir.CategoryScoring, Reason: "conditions not met"})
		return nil
	}
	cur, err := numericSource(s.ctx, r.Counter)
	if err != nil {
		return err
	}
	next := cur + r.Delta
	s.ctx.Sources[r.Counter] = ir.Int64(next)
	s.log(ir.LogEntry{
		Name:     r.ID,
		Category: ir.CategoryScoring,
		Passed:   true,
		Reason:   fmt.Sprintf("%s %d -> %d", r.Counter, cur, next),
		Metadata: map[string]any{"counter": r.Counter, "value": next},
	})
	return nil
}
