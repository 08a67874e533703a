package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/loregate/internal/ir"
)

// TraceSnapshot captures the turn logs of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	Scenario string         `json:"scenario"`
	Session  string         `json:"session"`
	Turns    []TurnSnapshot `json:"turns"`
}

// TurnSnapshot is the golden form of one turn: its log and final tags.
// Field contents are checked by expect clauses, not snapshotted.
type TurnSnapshot struct {
	Turn    int           `json:"turn"`
	Message string        `json:"message"`
	Entries []ir.LogEntry `json:"entries"`
	Tags    []string      `json:"tags"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	snap := TraceSnapshot{
		Scenario: scenarioName,
		Session:  result.Session,
		Turns:    make([]TurnSnapshot, len(result.Turns)),
	}
	for i, rec := range result.Turns {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		snap.Turns[i] = TurnSnapshot{
			Turn:    rec.Turn,
			Message: rec.Message,
			Entries: rec.Entries,
			Tags:    tags,
		}
	}
	return snap
}

// Snapshot renders a result as canonical JSON, the golden file format.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(NewTraceSnapshot(scenarioName, result))
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
