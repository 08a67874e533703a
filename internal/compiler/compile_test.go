package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loregate/internal/ir"
)

func testStages() []ir.StageDef {
	return []ir.StageDef{
		{ID: ir.StageVibe, Decay: 1},
		{ID: ir.StageEmotion, Signals: []ir.Signal{{Keywords: []string{"glad"}, Emit: "JOY"}}},
		{ID: ir.StageIntent},
	}
}

func testLibrary() *ir.Library {
	return &ir.Library{
		Stages: testStages(),
		Entries: []ir.Rule{
			{ID: "low", Priority: 1, Content: ir.Content{Text: "low"}},
			{ID: "high", Priority: 10, Content: ir.Content{Text: "high"}},
			{ID: "disabled", Priority: 99, Enabled: ir.Bool(false)},
			{ID: "tie", Priority: 10, Content: ir.Content{Text: "tie"}},
		},
		Cues: []ir.CueTable{
			{ID: "alice", Actor: "Alice", Priority: 1, Cues: []ir.Rule{{ID: "wave", Content: ir.Content{Text: "Alice waves."}}}},
		},
		Chains: []ir.LogicChain{
			{ID: "c1", Priority: 5, Blocks: []ir.ChainBlock{{Kind: ir.BlockIf, Actions: []ir.Action{{Kind: ir.ActionSetTag, Tag: "x"}}}}},
		},
		Groups: []ir.ProbabilityGroup{
			{ID: "g1", Priority: 10, TriggerChance: 100, Items: []ir.WeightedItem{{Name: "A", Weight: 1}}},
		},
		Scoring: []ir.ScoringRule{
			{ID: "s1", Counter: "affection", Delta: 1},
		},
	}
}

func TestCompileOrdering(t *testing.T) {
	proc, err := Compile(testLibrary())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"stage:emotion", "stage:intent", "stage:vibe",
		"entry:high", "entry:tie", "group:g1",
		"chain:c1",
		"entry:low", "cue:alice",
		"scoring:s1",
	}, proc.Keys())
	assert.Equal(t, ir.ProcedureVersion, proc.Version)
	assert.Len(t, proc.Hash, 64)
}

func TestCompileStagesFirstRegardlessOfPriority(t *testing.T) {
	lib := &ir.Library{
		Stages:  testStages(),
		Entries: []ir.Rule{{ID: "urgent", Priority: 1000}, {ID: "negative", Priority: -5}},
	}
	proc, err := Compile(lib)
	require.NoError(t, err)

	require.Len(t, proc.Units, 5)
	for i, id := range ir.FixedStages {
		assert.Equal(t, ir.CategoryStage, proc.Units[i].Category)
		assert.Equal(t, id, proc.Units[i].Stage.ID)
	}
	assert.Equal(t, "entry:urgent", proc.Units[3].Key)
	assert.Equal(t, "entry:negative", proc.Units[4].Key)
}

func TestCompileDeterministic(t *testing.T) {
	p1, err := Compile(testLibrary())
	require.NoError(t, err)
	p2, err := Compile(testLibrary())
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	for i := range p1.Units {
		assert.Equal(t, p1.Units[i].ID, p2.Units[i].ID)
	}
	assert.Equal(t, p1.Hash, p2.Hash)
}

func TestCompileUnitIDIndependentOfPriority(t *testing.T) {
	lib := testLibrary()
	p1, err := Compile(lib)
	require.NoError(t, err)

	lib.Entries[0].Priority = 50
	p2, err := Compile(lib)
	require.NoError(t, err)

	idOf := func(p *ir.Procedure, key string) string {
		for _, u := range p.Units {
			if u.Key == key {
				return u.ID
			}
		}
		return ""
	}
	assert.Equal(t, idOf(p1, "entry:low"), idOf(p2, "entry:low"))
	assert.Equal(t, "entry:low", p2.Units[3].Key)
	assert.NotEqual(t, p1.Hash, p2.Hash)
}

func TestCompileStageErrors(t *testing.T) {
	tests := []struct {
		name   string
		stages []ir.StageDef
		msg    string
	}{
		{"missing", []ir.StageDef{{ID: ir.StageEmotion}, {ID: ir.StageIntent}}, `missing stage "vibe"`},
		{"duplicate", append(testStages(), ir.StageDef{ID: ir.StageIntent}), `duplicate stage "intent"`},
		{"unknown", append(testStages(), ir.StageDef{ID: "weather"}), `unknown stage "weather"`},
		{"none", nil, `missing stage "emotion"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&ir.Library{Stages: tt.stages})
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "stage", ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

func TestCompileNilLibrary(t *testing.T) {
	_, err := Compile(nil)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "library", ce.Field)
}

func TestCompileDefaultTargets(t *testing.T) {
	lib := &ir.Library{
		Stages: testStages(),
		Entries: []ir.Rule{
			{ID: "plain", Shifts: []ir.Rule{{ID: "sub"}, {ID: "off", Enabled: ir.Bool(false)}}},
			{ID: "explicit", Content: ir.Content{Target: "notes"}, Shifts: []ir.Rule{{ID: "sub"}}},
		},
		Cues:   []ir.CueTable{{ID: "bob", Actor: "Bob", Cues: []ir.Rule{{ID: "a"}, {ID: "b", Enabled: ir.Bool(false)}}}},
		Groups: []ir.ProbabilityGroup{{ID: "g"}},
	}
	proc, err := Compile(lib)
	require.NoError(t, err)

	plain := proc.Units[3].Rule
	assert.Equal(t, ir.FieldScenario, plain.Content.Target)
	require.Len(t, plain.Shifts, 1, "disabled shift is dropped")
	assert.Equal(t, ir.FieldScenario, plain.Shifts[0].Content.Target)

	explicit := proc.Units[4].Rule
	assert.Equal(t, "notes", explicit.Content.Target)
	assert.Equal(t, "notes", explicit.Shifts[0].Content.Target, "shift inherits parent target")

	cue := proc.Units[5].Cue
	require.Len(t, cue.Cues, 1)
	assert.Equal(t, ir.FieldPersonality, cue.Cues[0].Content.Target)

	assert.Equal(t, ir.FieldScenario, proc.Units[6].Group.Target)

	assert.Empty(t, lib.Entries[0].Content.Target, "input library is not modified")
	assert.Len(t, lib.Cues[0].Cues, 2)
}

func TestCompileNormalizesKeywords(t *testing.T) {
	lib := &ir.Library{
		Stages:  testStages(),
		Entries: []ir.Rule{{ID: "cafe", Keywords: []string{"cafe\u0301"}}},
		Chains: []ir.LogicChain{{ID: "c", Blocks: []ir.ChainBlock{{
			Kind:       ir.BlockIf,
			Conditions: []ir.Condition{{Kind: ir.CondKeyword, Keywords: []string{"cafe\u0301"}}},
		}}}},
	}
	proc, err := Compile(lib)
	require.NoError(t, err)

	assert.Equal(t, []string{"caf\u00e9"}, proc.Units[3].Rule.Keywords)
	assert.Equal(t, []string{"caf\u00e9"}, proc.Units[4].Chain.Blocks[0].Conditions[0].Keywords)
	assert.Equal(t, []string{"cafe\u0301"}, lib.Entries[0].Keywords)
}

func TestCompileOrderField(t *testing.T) {
	proc, err := Compile(testLibrary())
	require.NoError(t, err)

	orders := make(map[string]int)
	for _, u := range proc.Units {
		orders[u.Key] = u.Order
	}
	assert.Equal(t, 0, orders["stage:emotion"])
	assert.Equal(t, 3, orders["entry:low"], "declaration index, disabled rules skipped")
	assert.Equal(t, 4, orders["entry:high"])
	assert.Equal(t, 9, orders["scoring:s1"])
}

func TestCompileRejectsDuplicateUnitKeys(t *testing.T) {
	lib := testLibrary()
	lib.Entries = append(lib.Entries, ir.Rule{ID: "low", Priority: 3})

	_, err := Compile(lib)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "entry:low", ce.Field)
	assert.Contains(t, ce.Message, `duplicate unit key "entry:low"`)

	// A disabled duplicate never becomes a unit.
	lib.Entries[len(lib.Entries)-1].Enabled = ir.Bool(false)
	_, err = Compile(lib)
	assert.NoError(t, err)
}
