package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadMinimal(t *testing.T, content string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(writeScenario(t, content))
	require.NoError(t, err)
	return scenario
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := loadMinimal(t, `
name: minimal
description: "rain fires once"
library: library.cue
static_sources:
  field.scenario: "A road."
turns:
  - user: "rain again"
    expect:
      fired: [rain]
      fields:
        scenario: "It is raining."
  - user: "clear skies"
assertions:
  - type: trace_contains
    turn: 1
    name: rain
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "test-session-default", result.Session)
	require.Len(t, result.Turns, 2)
	assert.Equal(t, 1, result.Turns[0].Turn)
	assert.Equal(t, "A road.\nIt is raining.", result.Turns[0].Fields["scenario"])

	// the first message is still within the default scan depth
	assert.True(t, result.Turns[1].Passed("rain"))
}

func TestRun_ExpectationFailuresAreRecorded(t *testing.T) {
	scenario := loadMinimal(t, `
name: failing
description: "every expectation is wrong"
library: library.cue
turns:
  - user: "sunny"
    expect:
      intent: greeting
      tags: [JOY]
      fired: [rain]
      fields:
        memory: "x"
assertions:
  - type: trace_count
    name: rain
    count: 1
  - type: final_state
    key: rapport
    value: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], `turn 1: intent = "", want "greeting"`)
	assert.Contains(t, result.Errors[1], "tag JOY missing")
	assert.Contains(t, result.Errors[2], "rain did not fire")
	assert.Contains(t, result.Errors[3], "field memory does not exist")
	assert.Contains(t, result.Errors[4], "0 passes")
	assert.Contains(t, result.Errors[5], "source not found")
}

func TestRun_NotFired(t *testing.T) {
	scenario := loadMinimal(t, `
name: negative
description: "rain must not fire"
library: library.cue
turns:
  - user: "rain"
    expect:
      not_fired: [rain]
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"turn 1: rain fired"}, result.Errors)
}

func TestRun_LibraryErrors(t *testing.T) {
	scenario := &Scenario{
		Name:    "broken",
		Library: filepath.Join(t.TempDir(), "missing.cue"),
		Turns:   []Turn{{User: "hi"}},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile library")
}

func TestRun_InvalidOverride(t *testing.T) {
	scenario := loadMinimal(t, `
name: float
description: "floats are not source values"
library: library.cue
turns:
  - user: "rain"
    overrides:
      mood: 0.5
`)
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn 1: overrides")
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/tavern_demo.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_SeededScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/tavern_demo.yaml")
	require.NoError(t, err)
	seed := uint64(11)
	scenario.Draws = nil
	scenario.Seed = &seed
	// drop the rumor-dependent field check
	scenario.Turns[0].Expect.Fields = nil
	scenario.Turns[0].Expect.Fired = []string{"tavern", "mira/welcome"}
	scenario.Turns[1].Expect.NotFired = []string{"mira/welcome", "mira/cheer"}
	scenario.Assertions = nil

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTavernDemo(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/tavern_demo.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Turns, 2)
	assert.Equal(t, "greeting", result.Turns[0].Intent)
	assert.Equal(t, []string{"FEAR", "AT_TAVERN", "TENSE"}, result.Turns[1].Tags)
	assert.Contains(t, result.Turns[1].Fields["scenario"], "Lanterns burn low after dark.")
	assert.NotContains(t, result.Turns[1].Fields["scenario"], "road tax",
		"context is rebuilt from sources every turn")
}
