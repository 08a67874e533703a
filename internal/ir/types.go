package ir

// Library is the rule store document: one typed collection per rule category.
// It is authored by an external editor and persists across turns.
type Library struct {
	Stages  []StageDef         `json:"stages"`
	Entries []Rule             `json:"entries,omitempty"`
	Cues    []CueTable         `json:"cues,omitempty"`
	Chains  []LogicChain       `json:"chains,omitempty"`
	Groups  []ProbabilityGroup `json:"groups,omitempty"`
	Scoring []ScoringRule      `json:"scoring,omitempty"`
}

// Fixed signal stage identifiers. The compiler requires exactly one of each.
const (
	StageEmotion = "emotion"
	StageIntent  = "intent"
	StageVibe    = "vibe"
)

// FixedStages lists the signal stages in their mandatory execution order.
var FixedStages = []string{StageEmotion, StageIntent, StageVibe}

// StageDef configures one of the three signal calculators.
type StageDef struct {
	ID      string   `json:"id"`
	Signals []Signal `json:"signals,omitempty"`
	Decay   int      `json:"decay,omitempty"` // vibe only: transient decay per turn
}

// Signal maps keywords found in the user message to a stage output.
//
//   - emotion: Emit is an emotion tag added to the context
//   - intent:  Emit is the intent; the first matching signal wins
//   - vibe:    Delta moves the transient track, LongTermDelta the cumulative one
type Signal struct {
	Keywords      []string `json:"keywords"`
	Emit          string   `json:"emit,omitempty"`
	Delta         int      `json:"delta,omitempty"`
	LongTermDelta int      `json:"long_term_delta,omitempty"`
}

// Rule is a declarative content rule: content to inject plus gating preconditions.
// World-knowledge entries, cues and shifts all share this shape.
type Rule struct {
	ID          string      `json:"id"`
	Enabled     *bool       `json:"enabled,omitempty"`
	Priority    int         `json:"priority,omitempty"`
	Probability *int        `json:"probability,omitempty"`
	Content     Content     `json:"content"`
	Keywords    []string    `json:"keywords,omitempty"`
	ScanDepth   *int        `json:"scan_depth,omitempty"`
	RequireTags TagMatch    `json:"require_tags,omitzero"`
	BlockTags   TagMatch    `json:"block_tags,omitzero"`
	EmitTags    []string    `json:"emit_tags,omitempty"`
	Shifts      []Rule      `json:"shifts,omitempty"`
	Gates       *GateBundle `json:"gates,omitempty"`
}

// IsEnabled reports whether the rule participates in compilation (default true).
func (r *Rule) IsEnabled() bool {
	return enabled(r.Enabled)
}

// Chance returns the rule's firing probability in percent (default 100).
func (r *Rule) Chance() int {
	if r.Probability == nil {
		return 100
	}
	return *r.Probability
}

// Depth returns the scan depth override, or def when the rule has none.
func (r *Rule) Depth(def int) int {
	if r.ScanDepth == nil {
		return def
	}
	return *r.ScanDepth
}

// Content is the text a rule injects and the field it targets.
type Content struct {
	Text   string `json:"text,omitempty"`
	Target string `json:"target,omitempty"`
}

// Tag match modes.
const (
	MatchAny = "any"
	MatchAll = "all"
)

// TagMatch is a tag set with ANY (default) or ALL semantics.
type TagMatch struct {
	Tags []string `json:"tags,omitempty"`
	Mode string   `json:"mode,omitempty"`
}

// All reports whether the match requires every tag.
func (m TagMatch) All() bool {
	return m.Mode == MatchAll
}

// GateBundle groups the optional typed gates of a rule.
type GateBundle struct {
	Emotion *EmotionGate  `json:"emotion,omitempty"`
	Eros    *ErosGate     `json:"eros,omitempty"`
	Intent  *IntentGate   `json:"intent,omitempty"`
	Entity  *EntityGate   `json:"entity,omitempty"`
	Numeric []NumericGate `json:"numeric,omitempty"`
}

// EmotionGate tests emotion tags present in the context.
type EmotionGate struct {
	AndAny []string `json:"and_any,omitempty"`
	AndAll []string `json:"and_all,omitempty"`
	NotAny []string `json:"not_any,omitempty"`
	NotAll []string `json:"not_all,omitempty"`
}

// ErosGate bounds the transient vibe track (inclusive, nil = unbounded)
// and requires a minimum cumulative track.
type ErosGate struct {
	Min         *int `json:"min,omitempty"`
	Max         *int `json:"max,omitempty"`
	LongTermMin *int `json:"long_term_min,omitempty"`
}

// IntentGate allows firing only for the listed intents. Empty means any.
type IntentGate struct {
	Allow []string `json:"allow,omitempty"`
}

// EntityGate restricts firing to the listed active actors.
type EntityGate struct {
	Actors []string `json:"actors"`
}

// Numeric comparison operators.
const (
	OpGTE = ">="
	OpLTE = "<="
	OpEQ  = "=="
)

// NumericGate compares a source value or derived metric against a threshold.
type NumericGate struct {
	Source string `json:"source"`
	Op     string `json:"op"`
	Value  int    `json:"value"`
}

// Derived metric names readable by numeric gates and conditions.
const (
	MetricTurn         = "metric.turn"
	MetricMessageCount = "metric.message_count"
	MetricTransient    = "metric.transient"
	MetricCumulative   = "metric.cumulative"
	MetricTagCount     = "metric.tag_count"
)

// EmotionVocabulary is the closed set of emotion tags.
var EmotionVocabulary = []string{
	"JOY", "SADNESS", "ANGER", "FEAR", "SURPRISE",
	"DISGUST", "TRUST", "ANTICIPATION", "ROMANCE", "CALM",
}

// IntentVocabulary is the closed set of intents.
var IntentVocabulary = []string{
	"question", "request", "greeting", "farewell",
	"flirt", "command", "smalltalk", "conflict",
}

// CueTable holds per-actor response cues. Each cue behaves like a Rule
// with an implicit entity gate on Actor.
type CueTable struct {
	ID       string `json:"id"`
	Actor    string `json:"actor"`
	Enabled  *bool  `json:"enabled,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Cues     []Rule `json:"cues"`
}

// IsEnabled reports whether the table participates in compilation (default true).
func (c *CueTable) IsEnabled() bool {
	return enabled(c.Enabled)
}

// Chain block kinds.
const (
	BlockIf     = "if"
	BlockElseIf = "elseif"
	BlockElse   = "else"
)

// Join operators.
const (
	JoinAnd = "AND"
	JoinOr  = "OR"
)

// LogicChain is an ordered if / else-if / else program.
type LogicChain struct {
	ID       string       `json:"id"`
	Enabled  *bool        `json:"enabled,omitempty"`
	Priority int          `json:"priority,omitempty"`
	Blocks   []ChainBlock `json:"blocks"`
}

// IsEnabled reports whether the chain participates in compilation (default true).
func (c *LogicChain) IsEnabled() bool {
	return enabled(c.Enabled)
}

// ChainBlock is one branch of a logic chain.
type ChainBlock struct {
	Kind       string      `json:"kind"`
	Join       string      `json:"join,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Actions    []Action    `json:"actions"`
}

// Condition kinds.
const (
	CondKeyword     = "keyword"
	CondTag         = "tag"
	CondProbability = "probability"
	CondNumeric     = "numeric"
	CondEntity      = "entity"
	CondEmotion     = "emotion"
	CondIntent      = "intent"
)

// Condition is a tagged union over the condition kinds. Only the fields
// belonging to Kind are read.
type Condition struct {
	Kind string `json:"kind"`

	// keyword
	Keywords  []string `json:"keywords,omitempty"`
	ScanDepth *int     `json:"scan_depth,omitempty"`

	// tag, emotion (Tags + Mode)
	Tags []string `json:"tags,omitempty"`
	Mode string   `json:"mode,omitempty"`

	// probability
	Chance int `json:"chance,omitempty"`

	// numeric
	Source string `json:"source,omitempty"`
	Op     string `json:"op,omitempty"`
	Value  int    `json:"value,omitempty"`

	// entity
	Actors []string `json:"actors,omitempty"`

	// intent
	Intents []string `json:"intents,omitempty"`
}

// Action kinds.
const (
	ActionAppend   = "append"
	ActionSetTag   = "set_tag"
	ActionSetField = "set_field"
)

// Action is a tagged union over the action kinds.
type Action struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
	Text   string `json:"text,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

// ProbabilityGroup is a weighted random event: one trigger draw, then one
// weighted draw over Items.
type ProbabilityGroup struct {
	ID            string         `json:"id"`
	Enabled       *bool          `json:"enabled,omitempty"`
	Priority      int            `json:"priority,omitempty"`
	TriggerChance int            `json:"trigger_chance"`
	Target        string         `json:"target,omitempty"`
	Items         []WeightedItem `json:"items"`
}

// IsEnabled reports whether the group participates in compilation (default true).
func (g *ProbabilityGroup) IsEnabled() bool {
	return enabled(g.Enabled)
}

// WeightedItem is one outcome of a probability group.
type WeightedItem struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
	Text   string `json:"text,omitempty"`
}

// ScoringRule adds Delta to an integer source counter when its conditions hold.
type ScoringRule struct {
	ID         string      `json:"id"`
	Enabled    *bool       `json:"enabled,omitempty"`
	Priority   int         `json:"priority,omitempty"`
	Join       string      `json:"join,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Counter    string      `json:"counter"`
	Delta      int         `json:"delta"`
}

// IsEnabled reports whether the rule participates in compilation (default true).
func (s *ScoringRule) IsEnabled() bool {
	return enabled(s.Enabled)
}

func enabled(b *bool) bool {
	return b == nil || *b
}

// Bool returns a pointer to b. Convenience for optional fields.
func Bool(b bool) *bool {
	return &b
}

// Int returns a pointer to n. Convenience for optional fields.
func Int(n int) *int {
	return &n
}
