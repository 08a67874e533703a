package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContextTagsMonotonic(t *testing.T) {
	ctx := NewExecutionContext()

	assert.True(t, ctx.AddTag("JOY"))
	assert.True(t, ctx.AddTag("rain"))
	assert.False(t, ctx.AddTag("JOY"), "duplicate tag is not new")
	assert.False(t, ctx.AddTag(""), "empty tag is ignored")

	assert.Equal(t, []string{"JOY", "rain"}, ctx.Tags())
	assert.True(t, ctx.HasTag("rain"))
	assert.False(t, ctx.HasTag("SADNESS"))

	tags := ctx.Tags()
	tags[0] = "mutated"
	assert.Equal(t, "JOY", ctx.Tags()[0], "Tags returns a copy")
}

func TestExecutionContextFields(t *testing.T) {
	ctx := NewExecutionContext(FieldPersonality, FieldScenario)

	ctx.AppendField(FieldScenario, "A storm rolls in.")
	ctx.AppendField(FieldScenario, "Thunder.")
	ctx.SetField("notes", "x")

	assert.Equal(t, "A storm rolls in.\nThunder.", ctx.Field(FieldScenario))
	assert.Equal(t, "", ctx.Field(FieldPersonality))
	assert.True(t, ctx.HasField(FieldPersonality))
	assert.False(t, ctx.HasField("missing"))
	assert.Equal(t, []string{FieldPersonality, FieldScenario, "notes"}, ctx.FieldNames())
}

func TestExecutionContextWindow(t *testing.T) {
	ctx := NewExecutionContext()
	ctx.History = []Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
	}

	assert.Equal(t, "three", ctx.Window(1))
	assert.Equal(t, "two\nthree", ctx.Window(2))
	assert.Equal(t, "one\ntwo\nthree", ctx.Window(10))
	assert.Equal(t, "one\ntwo\nthree", ctx.Window(0))
}

func TestExecutionContextMetric(t *testing.T) {
	ctx := NewExecutionContext()
	ctx.Turn = 4
	ctx.Transient = 6
	ctx.Cumulative = 20
	ctx.History = []Message{{Content: "a"}, {Content: "b"}}
	ctx.AddTag("JOY")

	for name, want := range map[string]int{
		MetricTurn:         4,
		MetricMessageCount: 2,
		MetricTransient:    6,
		MetricCumulative:   20,
		MetricTagCount:     1,
	} {
		got, ok := ctx.Metric(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := ctx.Metric("metric.unknown")
	assert.False(t, ok)
}

func TestExecutionContextCloneIsIndependent(t *testing.T) {
	ctx := NewExecutionContext(FieldScenario)
	ctx.AddTag("JOY")
	ctx.Sources["affection"] = Int64(1)
	ctx.ActiveActors = []string{"Alice"}

	snap := ctx.Clone()
	ctx.AddTag("rain")
	ctx.AppendField(FieldScenario, "changed")
	ctx.Sources["affection"] = Int64(2)
	ctx.ActiveActors[0] = "Bob"

	assert.Equal(t, []string{"JOY"}, snap.Tags())
	assert.False(t, snap.HasTag("rain"))
	assert.Equal(t, "", snap.Field(FieldScenario))
	assert.Equal(t, Int64(1), snap.Sources["affection"])
	assert.Equal(t, []string{"Alice"}, snap.ActiveActors)
}

func TestExecutionContextMarshalJSON(t *testing.T) {
	ctx := NewExecutionContext(FieldPersonality, FieldScenario)
	ctx.Turn = 1
	ctx.UserText = "hi"
	ctx.AddTag("JOY")

	data, err := json.Marshal(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"turn": 1,
		"user_text": "hi",
		"transient": 0,
		"cumulative": 0,
		"fields": [{"name":"personality","value":""},{"name":"scenario","value":""}],
		"tags": ["JOY"]
	}`, string(data))

	empty, err := json.Marshal(NewExecutionContext())
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"tags":[]`)
}

func TestTurnLogClone(t *testing.T) {
	log := &TurnLog{
		Session: "s",
		Turn:    1,
		Entries: []LogEntry{{Name: "rain", Passed: true, Metadata: map[string]any{"k": 1}}},
	}
	cp := log.Clone()
	cp.Entries[0].Metadata["k"] = 2
	cp.Entries[0].Passed = false

	assert.Equal(t, 1, log.Entries[0].Metadata["k"])
	assert.True(t, log.Entries[0].Passed)
	assert.Equal(t, []string{"rain"}, log.PassedNames())
}
