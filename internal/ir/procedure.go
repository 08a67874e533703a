package ir

import "fmt"

// Unit categories.
const (
	CategoryStage   = "stage"
	CategoryEntry   = "entry"
	CategoryCue     = "cue"
	CategoryChain   = "chain"
	CategoryGroup   = "group"
	CategoryScoring = "scoring"
	CategoryShift   = "shift"
)

// Procedure is the ordered, executable translation of an enabled rule set.
// The first three units are always the emotion, intent and vibe stages.
type Procedure struct {
	Version string `json:"version"`
	Hash    string `json:"hash"`
	Units   []Unit `json:"units"`
}

// Unit is one executable step of a procedure. Exactly one payload pointer
// is set, matching Category.
type Unit struct {
	ID       string `json:"id"`  // content-addressed
	Key      string `json:"key"` // "<category>:<rule id>"
	Category string `json:"category"`
	Priority int    `json:"priority"`
	Order    int    `json:"order"` // declaration index within the combined stack

	Stage   *StageDef         `json:"stage,omitempty"`
	Rule    *Rule             `json:"rule,omitempty"`
	Cue     *CueTable         `json:"cue,omitempty"`
	Chain   *LogicChain       `json:"chain,omitempty"`
	Group   *ProbabilityGroup `json:"group,omitempty"`
	Scoring *ScoringRule      `json:"scoring,omitempty"`
}

// UnitKey builds the stable key for a unit.
func UnitKey(category, id string) string {
	return fmt.Sprintf("%s:%s", category, id)
}

// Keys returns the unit keys in execution order.
func (p *Procedure) Keys() []string {
	keys := make([]string, len(p.Units))
	for i, u := range p.Units {
		keys[i] = u.Key
	}
	return keys
}
