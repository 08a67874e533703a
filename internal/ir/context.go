package ir

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// Default field names.
const (
	FieldPersonality = "personality"
	FieldScenario    = "scenario"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// ExecutionContext is the mutable per-turn working record acted upon by the
// compiled procedure. It is rebuilt at the start of every turn.
//
// Tags only grow: AddTag is the only mutator and there is no removal.
// History is read-only by convention; units never write to it.
type ExecutionContext struct {
	Turn         int
	UserText     string
	History      []Message
	Intent       string
	Transient    int
	Cumulative   int
	ActiveActors []string
	Sources      map[string]Value

	fieldOrder []string
	fields     map[string]string
	tags       []string
	tagSet     map[string]bool
}

// NewExecutionContext creates an empty context with the given designated fields.
func NewExecutionContext(fieldNames ...string) *ExecutionContext {
	c := &ExecutionContext{
		Sources: make(map[string]Value),
		fields:  make(map[string]string),
		tagSet:  make(map[string]bool),
	}
	for _, name := range fieldNames {
		c.SetField(name, "")
	}
	return c
}

// Field returns the value of a named field.
func (c *ExecutionContext) Field(name string) string {
	return c.fields[name]
}

// HasField reports whether the field exists.
func (c *ExecutionContext) HasField(name string) bool {
	_, ok := c.fields[name]
	return ok
}

// FieldNames returns field names in creation order.
func (c *ExecutionContext) FieldNames() []string {
	return slices.Clone(c.fieldOrder)
}

// SetField replaces a field's value, creating the field if needed.
func (c *ExecutionContext) SetField(name, value string) {
	if _, ok := c.fields[name]; !ok {
		c.fieldOrder = append(c.fieldOrder, name)
	}
	c.fields[name] = value
}

// AppendField appends text to a field on a new line.
func (c *ExecutionContext) AppendField(name, text string) {
	cur := c.fields[name]
	if cur == "" {
		c.SetField(name, text)
		return
	}
	c.SetField(name, cur+"\n"+text)
}

// AddTag adds a tag if not already present. Returns true if it was new.
func (c *ExecutionContext) AddTag(tag string) bool {
	if tag == "" || c.tagSet[tag] {
		return false
	}
	c.tagSet[tag] = true
	c.tags = append(c.tags, tag)
	return true
}

// HasTag reports whether the tag is present.
func (c *ExecutionContext) HasTag(tag string) bool {
	return c.tagSet[tag]
}

// Tags returns tags in first-appearance order.
func (c *ExecutionContext) Tags() []string {
	return slices.Clone(c.tags)
}

// IsActive reports whether the actor is currently active.
func (c *ExecutionContext) IsActive(actor string) bool {
	return slices.Contains(c.ActiveActors, actor)
}

// Window returns the last n history messages joined by newlines.
// n <= 0 scans the whole history.
func (c *ExecutionContext) Window(n int) string {
	msgs := c.History
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

// Metric returns a derived metric value.
func (c *ExecutionContext) Metric(name string) (int, bool) {
	switch name {
	case MetricTurn:
		return c.Turn, true
	case MetricMessageCount:
		return len(c.History), true
	case MetricTransient:
		return c.Transient, true
	case MetricCumulative:
		return c.Cumulative, true
	case MetricTagCount:
		return len(c.tags), true
	default:
		return 0, false
	}
}

// Clone returns a deep copy suitable as a diff snapshot.
func (c *ExecutionContext) Clone() *ExecutionContext {
	out := *c
	out.History = slices.Clone(c.History)
	out.ActiveActors = slices.Clone(c.ActiveActors)
	out.Sources = maps.Clone(c.Sources)
	out.fieldOrder = slices.Clone(c.fieldOrder)
	out.fields = maps.Clone(c.fields)
	out.tags = slices.Clone(c.tags)
	out.tagSet = maps.Clone(c.tagSet)
	return &out
}

// FieldValue is a named field in serialized form.
type FieldValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// contextJSON is the serialized shape of an ExecutionContext.
type contextJSON struct {
	Turn         int              `json:"turn"`
	UserText     string           `json:"user_text"`
	Intent       string           `json:"intent,omitempty"`
	Transient    int              `json:"transient"`
	Cumulative   int              `json:"cumulative"`
	ActiveActors []string         `json:"active_actors,omitempty"`
	Fields       []FieldValue     `json:"fields"`
	Tags         []string         `json:"tags"`
	Sources      map[string]Value `json:"sources,omitempty"`
}

// MarshalJSON renders fields in creation order and tags in appearance order.
func (c *ExecutionContext) MarshalJSON() ([]byte, error) {
	out := contextJSON{
		Turn:         c.Turn,
		UserText:     c.UserText,
		Intent:       c.Intent,
		Transient:    c.Transient,
		Cumulative:   c.Cumulative,
		ActiveActors: c.ActiveActors,
		Fields:       make([]FieldValue, 0, len(c.fieldOrder)),
		Tags:         c.Tags(),
		Sources:      c.Sources,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	for _, name := range c.fieldOrder {
		out.Fields = append(out.Fields, FieldValue{Name: name, Value: c.fields[name]})
	}
	return json.Marshal(out)
}
