package harness

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/loregate/internal/compiler"
	"github.com/roach88/loregate/internal/engine"
	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/store"
	"github.com/roach88/loregate/internal/testutil"
	"github.com/roach88/loregate/internal/trace"
)

// Harness is the test execution engine.
// It plays scenario turns through a real engine with a fixed session token
// and a scripted or seeded random source.
type Harness struct {
	engine  *engine.Engine
	session string
	history []ir.Message
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Load, validate and compile the rule library
// 2. Create fresh in-memory database as the project store and trace sink
// 3. Play each turn, checking its expect clause
// 4. Evaluate assertions against the trace and the project store
// 5. Return result with pass/fail, turn records, and errors
//
// Errors are returned only when the scenario cannot run at all; failed
// expectations are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	proc, err := compiler.LoadAndCompile(scenario.Library)
	if err != nil {
		return nil, fmt.Errorf("failed to compile library: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, proc, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult(h.session)
	for i, turn := range scenario.Turns {
		rec, err := h.playTurn(ctx, turn)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i+1, err)
		}
		result.AddTurn(rec)
		for _, msg := range checkExpect(rec, turn.Expect) {
			result.AddError(fmt.Sprintf("turn %d: %s", rec.Turn, msg))
		}
		slog.Debug("scenario turn completed",
			"scenario", scenario.Name,
			"turn", rec.Turn,
			"entries", len(rec.Entries),
		)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(st *store.Store, proc *ir.Procedure, s *Scenario) (*Harness, error) {
	sessions := testutil.NewFixedSessionGenerator(s.Session)
	session := sessions.Generate()

	static, err := toValues(s.Static)
	if err != nil {
		return nil, fmt.Errorf("static_sources: %w", err)
	}

	opts := []engine.EngineOption{
		engine.WithProjectStore(st),
		engine.WithStaticSources(static),
		engine.WithTrace(trace.NewLogger(session, trace.WithSink(st))),
		engine.WithSessionGenerator(sessions),
		engine.WithScanDepth(s.ScanDepth),
		engine.WithPersistent(s.Persistent...),
	}
	if len(s.Fields) > 0 {
		opts = append(opts, engine.WithFields(s.Fields...))
	}
	if s.Seed != nil {
		opts = append(opts, engine.WithRand(engine.NewSeededRand(*s.Seed)))
	} else {
		opts = append(opts, engine.WithRand(testutil.NewScriptedRand(s.Draws...)))
	}

	eng, err := engine.New(proc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return &Harness{engine: eng, session: session}, nil
}

// playTurn runs one turn and extends the history with its messages.
func (h *Harness) playTurn(ctx context.Context, turn Turn) (*TurnRecord, error) {
	overrides, err := toValues(turn.Overrides)
	if err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}

	res, err := h.engine.Run(ctx, engine.TurnInput{
		UserText:  turn.User,
		History:   h.history,
		Overrides: overrides,
	})
	if err != nil {
		return nil, err
	}

	h.history = append(h.history, ir.Message{Role: "user", Content: turn.User})
	if turn.Reply != "" {
		h.history = append(h.history, ir.Message{Role: "assistant", Content: turn.Reply})
	}

	fields := make(map[string]string)
	for _, name := range res.Context.FieldNames() {
		fields[name] = res.Context.Field(name)
	}
	return &TurnRecord{
		Turn:    res.Log.Turn,
		Message: res.Log.Message,
		Entries: res.Log.Entries,
		Tags:    res.Context.Tags(),
		Intent:  res.Context.Intent,
		Fields:  fields,
	}, nil
}

// checkExpect compares a turn against its expect clause and returns one
// message per mismatch.
func checkExpect(rec *TurnRecord, exp *Expect) []string {
	if exp == nil {
		return nil
	}
	var errs []string

	if exp.Intent != "" && rec.Intent != exp.Intent {
		errs = append(errs, fmt.Sprintf("intent = %q, want %q", rec.Intent, exp.Intent))
	}
	for _, t := range exp.Tags {
		if !slices.Contains(rec.Tags, t) {
			errs = append(errs, fmt.Sprintf("tag %s missing (have %v)", t, rec.Tags))
		}
	}
	for _, t := range exp.NoTags {
		if slices.Contains(rec.Tags, t) {
			errs = append(errs, fmt.Sprintf("tag %s present", t))
		}
	}
	for _, name := range exp.Fired {
		if !rec.Passed(name) {
			errs = append(errs, fmt.Sprintf("%s did not fire", name))
		}
	}
	for _, name := range exp.NotFired {
		if rec.Passed(name) {
			errs = append(errs, fmt.Sprintf("%s fired", name))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(exp.Fields)) {
		want := exp.Fields[name]
		got, ok := rec.Fields[name]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("field %s does not exist", name))
		case !strings.Contains(got, want):
			errs = append(errs, fmt.Sprintf("field %s = %q, want it to contain %q", name, got, want))
		}
	}
	return errs
}

// toValues converts YAML-parsed scalars into source values.
// Returns an error for nulls, floats and nested values.
func toValues(m map[string]any) (ir.Values, error) {
	out := make(ir.Values, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v, err := ir.ValueFromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
