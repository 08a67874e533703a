package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/loregate/internal/ir"
)

func TestDiff_Append(t *testing.T) {
	before := ir.NewExecutionContext(DefaultFields...)
	before.SetField(ir.FieldScenario, "A tavern.")
	after := before.Clone()
	after.AppendField(ir.FieldScenario, "It is raining.")

	report := Diff(before, after)
	assert.Equal(t, []FieldChange{{
		Field:       ir.FieldScenario,
		Type:        ChangeAppend,
		AddedText:   "\nIt is raining.",
		AddedLength: len(after.Field(ir.FieldScenario)) - len(before.Field(ir.FieldScenario)),
	}}, report.Fields)
}

func TestDiff_AppendToEmptyField(t *testing.T) {
	before := ir.NewExecutionContext(DefaultFields...)
	after := before.Clone()
	after.AppendField(ir.FieldPersonality, "Kind.")

	report := Diff(before, after)
	assert.Equal(t, []FieldChange{{Field: ir.FieldPersonality, Type: ChangeAppend, AddedText: "Kind.", AddedLength: 5}}, report.Fields)
}

func TestDiff_AddedLengthCountsBytes(t *testing.T) {
	before := ir.NewExecutionContext(ir.FieldScenario)
	after := before.Clone()
	after.SetField(ir.FieldScenario, "caf\u00e9")

	report := Diff(before, after)
	assert.Equal(t, 5, report.Fields[0].AddedLength)
}

func TestDiff_Modify(t *testing.T) {
	before := ir.NewExecutionContext(DefaultFields...)
	before.SetField(ir.FieldScenario, "A tavern.")
	after := before.Clone()
	after.SetField(ir.FieldScenario, "A castle.")

	report := Diff(before, after)
	assert.Equal(t, []FieldChange{{Field: ir.FieldScenario, Type: ChangeModify}}, report.Fields)
}

func TestDiff_UnchangedOmitted(t *testing.T) {
	before := ir.NewExecutionContext(DefaultFields...)
	before.SetField(ir.FieldScenario, "same")
	report := Diff(before, before.Clone())

	assert.Empty(t, report.Fields)
	assert.Empty(t, report.Tags)
	assert.NotNil(t, report.Fields)
	assert.NotNil(t, report.Tags)
}

func TestDiff_FieldOrder(t *testing.T) {
	before := ir.NewExecutionContext(ir.FieldPersonality, ir.FieldScenario)
	after := before.Clone()
	after.SetField("mood", "tense")
	after.SetField(ir.FieldScenario, "x")
	after.SetField(ir.FieldPersonality, "y")

	report := Diff(before, after)
	var names []string
	for _, f := range report.Fields {
		names = append(names, f.Field)
	}
	assert.Equal(t, []string{ir.FieldPersonality, ir.FieldScenario, "mood"}, names)
	assert.Equal(t, ChangeModify, report.Fields[2].Type, "new fields are modifications")
}

func TestDiff_NewTagsInAppearanceOrder(t *testing.T) {
	before := ir.NewExecutionContext()
	before.AddTag("JOY")
	after := before.Clone()
	after.AddTag("ROMANCE")
	after.AddTag("JOY")
	after.AddTag("CALM")

	report := Diff(before, after)
	assert.Equal(t, []string{"ROMANCE", "CALM"}, report.Tags)
	assert.Subset(t, after.Tags(), before.Tags())
}
