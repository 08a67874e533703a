package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/loregate/internal/ir"
)

// Rule shape error codes (E100-E199)
const (
	// Identity and structure (E101-E109)
	ErrMissingID        = "E101" // rule id is required
	ErrDuplicateID      = "E102" // duplicate id within a category, cue table or parent rule
	ErrProbabilityRange = "E103" // probability / chance outside 0-100
	ErrInvalidTagMode   = "E104" // tag match mode must be any or all
	ErrEmptyKeyword     = "E105" // keyword is blank
	ErrInvalidScanDepth = "E106" // scan depth must be positive

	// Gates (E110-E119)
	ErrUnknownEmotion  = "E110" // emotion outside the fixed vocabulary
	ErrUnknownIntent   = "E111" // intent outside the fixed vocabulary
	ErrInvalidErosGate = "E112" // eros bound outside 0-10 or min > max
	ErrInvalidNumeric  = "E113" // numeric gate needs a source and >=, <= or ==
	ErrEmptyEntityGate = "E114" // entity gate lists no actors

	// Logic chains and scoring (E120-E129)
	ErrInvalidBlockOrder = "E120" // chain must start with if; else must be last
	ErrInvalidJoin       = "E121" // join must be AND or OR
	ErrInvalidCondition  = "E122" // unknown or incomplete condition
	ErrInvalidAction     = "E123" // unknown or incomplete action
	ErrMissingCounter    = "E124" // scoring rule has no counter

	// Groups, cues and stages (E130-E139)
	ErrInvalidGroup  = "E130" // group needs items with non-negative, non-zero total weight
	ErrMissingActor  = "E131" // cue table needs an actor
	ErrInvalidStage  = "E132" // stage id unknown, missing or duplicated
	ErrInvalidSignal = "E133" // signal emits nothing usable
)

// RuleShapeError reports a structurally malformed rule. Shape errors are
// found at authoring time and never raised mid-turn.
type RuleShapeError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e RuleShapeError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks every rule in a library against its shape rules.
// Returns all errors found (does not fail-fast).
func Validate(lib *ir.Library) []RuleShapeError {
	v := &validator{}
	if lib == nil {
		v.add("library", ErrMissingID, "library is nil")
		return v.errs
	}

	v.stages(lib.Stages)

	ids := make(map[string]bool)
	for i, r := range lib.Entries {
		v.id(fmt.Sprintf("entries[%d]", i), ir.CategoryEntry, r.ID, ids)
		v.rule(fmt.Sprintf("entries[%d]", i), &r)
	}

	ids = make(map[string]bool)
	for i, c := range lib.Cues {
		path := fmt.Sprintf("cues[%d]", i)
		v.id(path, ir.CategoryCue, c.ID, ids)
		if strings.TrimSpace(c.Actor) == "" {
			v.add(path+".actor", ErrMissingActor, "cue table actor is required")
		}
		cueIDs := make(map[string]bool)
		for j, cue := range c.Cues {
			cpath := fmt.Sprintf("%s.cues[%d]", path, j)
			v.id(cpath, ir.CategoryCue, cue.ID, cueIDs)
			v.rule(cpath, &cue)
		}
	}

	ids = make(map[string]bool)
	for i, c := range lib.Chains {
		path := fmt.Sprintf("chains[%d]", i)
		v.id(path, ir.CategoryChain, c.ID, ids)
		v.chain(path, &c)
	}

	ids = make(map[string]bool)
	for i, g := range lib.Groups {
		path := fmt.Sprintf("groups[%d]", i)
		v.id(path, ir.CategoryGroup, g.ID, ids)
		v.group(path, &g)
	}

	ids = make(map[string]bool)
	for i, s := range lib.Scoring {
		path := fmt.Sprintf("scoring[%d]", i)
		v.id(path, ir.CategoryScoring, s.ID, ids)
		v.join(path+".join", s.Join)
		if strings.TrimSpace(s.Counter) == "" {
			v.add(path+".counter", ErrMissingCounter, "scoring rule counter is required")
		}
		for j, c := range s.Conditions {
			v.condition(fmt.Sprintf("%s.conditions[%d]", path, j), c)
		}
	}

	return v.errs
}

type validator struct {
	errs []RuleShapeError
}

func (v *validator) add(field, code, msg string) {
	v.errs = append(v.errs, RuleShapeError{Field: field, Message: msg, Code: code})
}

func (v *validator) id(path, category, id string, seen map[string]bool) {
	if strings.TrimSpace(id) == "" {
		v.add(path+".id", ErrMissingID, fmt.Sprintf("%s id is required", category))
		return
	}
	if seen[id] {
		v.add(path+".id", ErrDuplicateID, fmt.Sprintf("duplicate %s id: %q", category, id))
	}
	seen[id] = true
}

func (v *validator) stages(defs []ir.StageDef) {
	seen := make(map[string]bool)
	for i, d := range defs {
		path := fmt.Sprintf("stages[%d]", i)
		switch {
		case !slices.Contains(ir.FixedStages, d.ID):
			v.add(path+".id", ErrInvalidStage, fmt.Sprintf("unknown stage %q", d.ID))
			continue
		case seen[d.ID]:
			v.add(path+".id", ErrInvalidStage, fmt.Sprintf("duplicate stage %q", d.ID))
		}
		seen[d.ID] = true

		for j, sig := range d.Signals {
			spath := fmt.Sprintf("%s.signals[%d]", path, j)
			v.keywords(spath+".keywords", sig.Keywords)
			if len(sig.Keywords) == 0 {
				v.add(spath+".keywords", ErrInvalidSignal, "signal needs at least one keyword")
			}
			switch d.ID {
			case ir.StageEmotion:
				if !slices.Contains(ir.EmotionVocabulary, sig.Emit) {
					v.add(spath+".emit", ErrUnknownEmotion, fmt.Sprintf("unknown emotion %q", sig.Emit))
				}
			case ir.StageIntent:
				if !slices.Contains(ir.IntentVocabulary, sig.Emit) {
					v.add(spath+".emit", ErrUnknownIntent, fmt.Sprintf("unknown intent %q", sig.Emit))
				}
			case ir.StageVibe:
				if sig.Delta == 0 && sig.LongTermDelta == 0 {
					v.add(spath, ErrInvalidSignal, "vibe signal moves neither track")
				}
			}
		}
		if d.Decay < 0 {
			v.add(path+".decay", ErrInvalidSignal, "decay must not be negative")
		}
	}
	for _, id := range ir.FixedStages {
		if !seen[id] {
			v.add("stages", ErrInvalidStage, fmt.Sprintf("missing stage %q", id))
		}
	}
}

func (v *validator) rule(path string, r *ir.Rule) {
	if r.Probability != nil {
		v.percent(path+".probability", *r.Probability)
	}
	if r.ScanDepth != nil && *r.ScanDepth <= 0 {
		v.add(path+".scan_depth", ErrInvalidScanDepth, "scan depth must be positive")
	}
	v.keywords(path+".keywords", r.Keywords)
	v.tagMode(path+".require_tags.mode", r.RequireTags.Mode)
	v.tagMode(path+".block_tags.mode", r.BlockTags.Mode)

	if g := r.Gates; g != nil {
		if g.Emotion != nil {
			for _, set := range [][]string{g.Emotion.AndAny, g.Emotion.AndAll, g.Emotion.NotAny, g.Emotion.NotAll} {
				v.emotions(path+".gates.emotion", set)
			}
		}
		if g.Eros != nil {
			v.eros(path+".gates.eros", g.Eros)
		}
		if g.Intent != nil {
			v.intents(path+".gates.intent.allow", g.Intent.Allow)
		}
		if g.Entity != nil && len(g.Entity.Actors) == 0 {
			v.add(path+".gates.entity.actors", ErrEmptyEntityGate, "entity gate needs at least one actor")
		}
		for i, n := range g.Numeric {
			v.numeric(fmt.Sprintf("%s.gates.numeric[%d]", path, i), n.Source, n.Op)
		}
	}

	shiftIDs := make(map[string]bool)
	for i, s := range r.Shifts {
		spath := fmt.Sprintf("%s.shifts[%d]", path, i)
		v.id(spath, ir.CategoryShift, s.ID, shiftIDs)
		v.rule(spath, &s)
	}
}

func (v *validator) chain(path string, c *ir.LogicChain) {
	if len(c.Blocks) == 0 {
		v.add(path+".blocks", ErrInvalidBlockOrder, "chain needs at least one block")
		return
	}
	for i, b := range c.Blocks {
		bpath := fmt.Sprintf("%s.blocks[%d]", path, i)
		switch {
		case i == 0 && b.Kind != ir.BlockIf:
			v.add(bpath+".kind", ErrInvalidBlockOrder, "first block must be if")
		case i > 0 && b.Kind == ir.BlockIf:
			v.add(bpath+".kind", ErrInvalidBlockOrder, "if may only open a chain")
		case b.Kind == ir.BlockElse && i != len(c.Blocks)-1:
			v.add(bpath+".kind", ErrInvalidBlockOrder, "else must be the last block")
		case b.Kind != ir.BlockIf && b.Kind != ir.BlockElseIf && b.Kind != ir.BlockElse:
			v.add(bpath+".kind", ErrInvalidBlockOrder, fmt.Sprintf("unknown block kind %q", b.Kind))
		}
		v.join(bpath+".join", b.Join)
		if b.Kind == ir.BlockElse && len(b.Conditions) > 0 {
			v.add(bpath+".conditions", ErrInvalidCondition, "else takes no conditions")
		}
		for j, cond := range b.Conditions {
			v.condition(fmt.Sprintf("%s.conditions[%d]", bpath, j), cond)
		}
		for j, a := range b.Actions {
			v.action(fmt.Sprintf("%s.actions[%d]", bpath, j), a)
		}
	}
}

func (v *validator) condition(path string, c ir.Condition) {
	switch c.Kind {
	case ir.CondKeyword:
		if len(c.Keywords) == 0 {
			v.add(path+".keywords", ErrInvalidCondition, "keyword condition needs keywords")
		}
		v.keywords(path+".keywords", c.Keywords)
		if c.ScanDepth != nil && *c.ScanDepth <= 0 {
			v.add(path+".scan_depth", ErrInvalidScanDepth, "scan depth must be positive")
		}
	case ir.CondTag:
		if len(c.Tags) == 0 {
			v.add(path+".tags", ErrInvalidCondition, "tag condition needs tags")
		}
		v.tagMode(path+".mode", c.Mode)
	case ir.CondEmotion:
		if len(c.Tags) == 0 {
			v.add(path+".tags", ErrInvalidCondition, "emotion condition needs emotions")
		}
		v.emotions(path+".tags", c.Tags)
		v.tagMode(path+".mode", c.Mode)
	case ir.CondProbability:
		v.percent(path+".chance", c.Chance)
	case ir.CondNumeric:
		v.numeric(path, c.Source, c.Op)
	case ir.CondEntity:
		if len(c.Actors) == 0 {
			v.add(path+".actors", ErrEmptyEntityGate, "entity condition needs at least one actor")
		}
	case ir.CondIntent:
		if len(c.Intents) == 0 {
			v.add(path+".intents", ErrInvalidCondition, "intent condition needs intents")
		}
		v.intents(path+".intents", c.Intents)
	default:
		v.add(path+".kind", ErrInvalidCondition, fmt.Sprintf("unknown condition kind %q", c.Kind))
	}
}

func (v *validator) action(path string, a ir.Action) {
	switch a.Kind {
	case ir.ActionAppend, ir.ActionSetField:
		if strings.TrimSpace(a.Target) == "" {
			v.add(path+".target", ErrInvalidAction, fmt.Sprintf("%s action needs a target field", a.Kind))
		}
	case ir.ActionSetTag:
		if strings.TrimSpace(a.Tag) == "" {
			v.add(path+".tag", ErrInvalidAction, "set_tag action needs a tag")
		}
	default:
		v.add(path+".kind", ErrInvalidAction, fmt.Sprintf("unknown action kind %q", a.Kind))
	}
}

func (v *validator) group(path string, g *ir.ProbabilityGroup) {
	v.percent(path+".trigger_chance", g.TriggerChance)
	if len(g.Items) == 0 {
		v.add(path+".items", ErrInvalidGroup, "group needs at least one item")
		return
	}
	total := 0
	for i, it := range g.Items {
		if it.Weight < 0 {
			v.add(fmt.Sprintf("%s.items[%d].weight", path, i), ErrInvalidGroup, "weight must not be negative")
			continue
		}
		total += it.Weight
	}
	if total == 0 {
		v.add(path+".items", ErrInvalidGroup, "total weight must be positive")
	}
}

func (v *validator) percent(path string, p int) {
	if p < 0 || p > 100 {
		v.add(path, ErrProbabilityRange, fmt.Sprintf("must be within 0-100, got %d", p))
	}
}

func (v *validator) tagMode(path, mode string) {
	if mode != "" && mode != ir.MatchAny && mode != ir.MatchAll {
		v.add(path, ErrInvalidTagMode, fmt.Sprintf("mode must be any or all, got %q", mode))
	}
}

func (v *validator) join(path, join string) {
	if join != "" && join != ir.JoinAnd && join != ir.JoinOr {
		v.add(path, ErrInvalidJoin, fmt.Sprintf("join must be AND or OR, got %q", join))
	}
}

func (v *validator) keywords(path string, kws []string) {
	for i, k := range kws {
		if strings.TrimSpace(k) == "" {
			v.add(fmt.Sprintf("%s[%d]", path, i), ErrEmptyKeyword, "keyword must not be blank")
		}
	}
}

func (v *validator) emotions(path string, tags []string) {
	for _, t := range tags {
		if !slices.Contains(ir.EmotionVocabulary, t) {
			v.add(path, ErrUnknownEmotion, fmt.Sprintf("unknown emotion %q", t))
		}
	}
}

func (v *validator) intents(path string, intents []string) {
	for _, in := range intents {
		if !slices.Contains(ir.IntentVocabulary, in) {
			v.add(path, ErrUnknownIntent, fmt.Sprintf("unknown intent %q", in))
		}
	}
}

func (v *validator) eros(path string, g *ir.ErosGate) {
	bounds := []struct {
		name string
		val  *int
	}{{"min", g.Min}, {"max", g.Max}, {"long_term_min", g.LongTermMin}}
	for _, b := range bounds {
		if b.val != nil && (*b.val < 0 || *b.val > 10) {
			v.add(path+"."+b.name, ErrInvalidErosGate, fmt.Sprintf("must be within 0-10, got %d", *b.val))
		}
	}
	if g.Min != nil && g.Max != nil && *g.Min > *g.Max {
		v.add(path, ErrInvalidErosGate, fmt.Sprintf("min %d exceeds max %d", *g.Min, *g.Max))
	}
}

func (v *validator) numeric(path, source, op string) {
	if strings.TrimSpace(source) == "" {
		v.add(path+".source", ErrInvalidNumeric, "numeric comparison needs a source")
	}
	if op != ir.OpGTE && op != ir.OpLTE && op != ir.OpEQ {
		v.add(path+".op", ErrInvalidNumeric, fmt.Sprintf("op must be >=, <= or ==, got %q", op))
	}
}
