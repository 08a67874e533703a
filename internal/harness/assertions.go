package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Turns    []TurnRecord // Turn records for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Turns) > 0 {
		fmt.Fprintf(&buf, "\nFired per turn:\n")
		for _, rec := range e.Turns {
			fmt.Fprintf(&buf, "  [%d] %s\n", rec.Turn, strings.Join(passedNames(rec), ", "))
		}
	}

	return buf.String()
}

func passedNames(rec TurnRecord) []string {
	var out []string
	for _, e := range rec.Entries {
		if e.Passed {
			out = append(out, e.Name)
		}
	}
	return out
}

// assertTraceContains checks that the named entry passed, in the given turn
// or in any turn when Turn is 0.
func assertTraceContains(turns []TurnRecord, assertion Assertion) error {
	for _, rec := range turns {
		if assertion.Turn != 0 && rec.Turn != assertion.Turn {
			continue
		}
		if rec.Passed(assertion.Name) {
			return nil
		}
	}

	where := "any turn"
	if assertion.Turn != 0 {
		where = fmt.Sprintf("turn %d", assertion.Turn)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s fired in %s", assertion.Name, where),
		Actual:   "not found in trace",
		Turns:    turns,
	}
}

// assertTraceOrder checks that entries passed in the specified order within
// one turn. Entries don't need to be consecutive.
func assertTraceOrder(turns []TurnRecord, assertion Assertion) error {
	rec, ok := findTurn(turns, assertion.Turn)
	if !ok {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("turn %d in trace", assertion.Turn),
			Actual:   fmt.Sprintf("%d turns played", len(turns)),
			Turns:    turns,
		}
	}

	// Step 1: Find first position of each expected entry
	positions := make(map[string]int)
	for i, e := range rec.Entries {
		if e.Passed && positions[e.Name] == 0 {
			positions[e.Name] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all entries found
	for _, name := range assertion.Names {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all entries fired: %v", assertion.Names),
				Actual:   fmt.Sprintf("missing entry: %s", name),
				Turns:    turns,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Names); i++ {
		prev := assertion.Names[i-1]
		curr := assertion.Names[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("entries in order: %v", assertion.Names),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Turns: turns,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the entry passed exactly Count times across
// all turns.
func assertTraceCount(turns []TurnRecord, assertion Assertion) error {
	count := 0
	for _, rec := range turns {
		for _, e := range rec.Entries {
			if e.Passed && e.Name == assertion.Name {
				count++
			}
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d passes of %s", assertion.Count, assertion.Name),
			Actual:   fmt.Sprintf("%d passes", count),
			Turns:    turns,
		}
	}

	return nil
}

// assertFinalState checks a project-level source value after the last turn.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	want, err := ir.ValueFromAny(assertion.Value)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", assertion.Key, err)
	}

	got, ok, err := st.GetSource(ctx, assertion.Key)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("read source %s", assertion.Key),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("source %s = %s", assertion.Key, ir.FormatValue(want)),
			Actual:   "source not found",
		}
	}
	if got != want {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("source %s = %s (type %T)", assertion.Key, ir.FormatValue(want), want),
			Actual:   fmt.Sprintf("source %s = %s (type %T)", assertion.Key, ir.FormatValue(got), got),
		}
	}

	return nil
}

func findTurn(turns []TurnRecord, n int) (TurnRecord, bool) {
	for _, rec := range turns {
		if rec.Turn == n {
			return rec, true
		}
	}
	return TurnRecord{}, false
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Turns, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Turns, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Turns, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
