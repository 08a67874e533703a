package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario compiles one rule library, plays a sequence of user turns
// against it in a single session and checks each turn's outcome plus the
// session's trace and persisted sources.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Library is the rule library: a CUE package directory, a .cue file or
	// a .json document. Relative paths resolve against the scenario file.
	Library string `yaml:"library"`

	// Session is the fixed session token.
	// If empty, defaults to "test-session-default" so golden files stay stable.
	Session string `yaml:"session,omitempty"`

	// Draws scripts the random source: each probability draw takes the next
	// value, cycling. Values must lie in [0, 1).
	Draws []float64 `yaml:"draws,omitempty"`

	// Seed selects a seeded random source instead of scripted draws.
	Seed *uint64 `yaml:"seed,omitempty"`

	// Engine tunables, as in the config file.
	ScanDepth  int            `yaml:"scan_depth,omitempty"`
	Fields     []string       `yaml:"fields,omitempty"`
	Persistent []string       `yaml:"persistent,omitempty"`
	Static     map[string]any `yaml:"static_sources,omitempty"`

	// Turns are played in order. History carries over between turns.
	Turns []Turn `yaml:"turns"`

	// Assertions validate the session trace and the final project store.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Turn is one user message and what the turn must produce.
type Turn struct {
	// User is the user message for this turn.
	User string `yaml:"user"`

	// Reply is an assistant message appended to the history after the turn.
	Reply string `yaml:"reply,omitempty"`

	// Overrides are per-turn source overrides.
	Overrides map[string]any `yaml:"overrides,omitempty"`

	// Expect checks the turn's final context and log. If nil, the turn only
	// has to run.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a turn.
type Expect struct {
	// Intent is the intent the intent stage must set.
	Intent string `yaml:"intent,omitempty"`

	// Tags must all be present; NoTags must all be absent.
	Tags   []string `yaml:"tags,omitempty"`
	NoTags []string `yaml:"no_tags,omitempty"`

	// Fired and NotFired name log entries (e.g. "tavern", "mira/welcome",
	// "tavern/night") that must have passed or must not have passed.
	Fired    []string `yaml:"fired,omitempty"`
	NotFired []string `yaml:"not_fired,omitempty"`

	// Fields maps a field name to text its final value must contain.
	Fields map[string]string `yaml:"fields,omitempty"`
}

// Assertion validates the session trace or the final project store.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an entry passed (in Turn, or any turn if 0)
	// - "trace_order": Check passed entries appear in order within Turn
	// - "trace_count": Check an entry passed exactly Count times
	// - "final_state": Check a project source value after the last turn
	Type string `yaml:"type"`

	// Turn restricts trace_contains and selects the turn for trace_order.
	Turn int `yaml:"turn,omitempty"`

	// Name is the log entry name (used by trace_contains, trace_count).
	Name string `yaml:"name,omitempty"`

	// Names is the expected entry order (used by trace_order).
	Names []string `yaml:"names,omitempty"`

	// Count is the expected number of passes (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Key and Value are the source and its expected value (used by final_state).
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The library path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Library != "" && !filepath.IsAbs(scenario.Library) {
		scenario.Library = filepath.Join(filepath.Dir(path), scenario.Library)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Library == "" {
		return fmt.Errorf("library is required")
	}
	if _, err := os.Stat(s.Library); os.IsNotExist(err) {
		return fmt.Errorf("library not found: %s", s.Library)
	}

	if len(s.Turns) == 0 {
		return fmt.Errorf("turns list is required and must be non-empty")
	}

	if s.Seed != nil && len(s.Draws) > 0 {
		return fmt.Errorf("seed and draws are mutually exclusive")
	}
	for i, d := range s.Draws {
		if d < 0 || d >= 1 {
			return fmt.Errorf("draws[%d]: %v is outside [0, 1)", i, d)
		}
	}

	for i, turn := range s.Turns {
		if turn.User == "" {
			return fmt.Errorf("turns[%d]: user is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Turns)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, turns int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Turn < 0 || a.Turn > turns {
		return fmt.Errorf("assertions[%d]: turn %d out of range 1-%d", index, a.Turn, turns)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for trace_order", index)
		}
		if a.Turn == 0 {
			return fmt.Errorf("assertions[%d]: turn is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for final_state", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
