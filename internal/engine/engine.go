package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/roach88/loregate/internal/compiler"
	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/source"
	"github.com/roach88/loregate/internal/trace"
)

// DefaultFields are the designated mutable fields of every context.
var DefaultFields = []string{ir.FieldPersonality, ir.FieldScenario}

// Engine runs a compiled procedure once per turn.
//
// Thread-safety model:
//   - Run(): one turn at a time; a concurrent call fails fast with
//     ErrTurnInProgress
//   - Session(), Procedure(), Trace(): safe from any goroutine
//
// INVARIANTS:
//   - procedure unit order NEVER changes after construction
//   - every turn starts from a freshly assembled context
//   - turn numbers strictly increase
type Engine struct {
	proc       *ir.Procedure
	project    source.Store
	static     ir.Values
	fields     []string
	persistent []string
	scanDepth  int
	rand       Rand
	trace      *trace.Logger
	clock      *Clock
	sessions   SessionGenerator
	session    string

	keys    []string // source keys resolved every turn
	running atomic.Bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithProjectStore sets the project-level source store. Persistent sources
// are written back to it after every turn.
func WithProjectStore(s source.Store) EngineOption {
	return func(e *Engine) {
		e.project = s
	}
}

// WithStaticSources sets the static default source values.
func WithStaticSources(v ir.Values) EngineOption {
	return func(e *Engine) {
		e.static = v
	}
}

// WithFields replaces the designated context fields.
//
// Default: personality, scenario (DefaultFields)
func WithFields(names ...string) EngineOption {
	return func(e *Engine) {
		e.fields = slices.Clone(names)
	}
}

// WithPersistent marks additional source keys for write-back. A key of the
// form "field.<name>" persists that field's final value. Vibe tracks and
// scoring counters always persist.
func WithPersistent(keys ...string) EngineOption {
	return func(e *Engine) {
		e.persistent = append(e.persistent, keys...)
	}
}

// WithScanDepth sets the default keyword scan depth.
//
// Default: 4 messages (DefaultScanDepth)
func WithScanDepth(n int) EngineOption {
	return func(e *Engine) {
		e.scanDepth = n
	}
}

// WithRand sets the random source. Use NewSeededRand for reproducible turns.
func WithRand(r Rand) EngineOption {
	return func(e *Engine) {
		e.rand = r
	}
}

// WithTrace sets the trace logger that records every turn.
func WithTrace(l *trace.Logger) EngineOption {
	return func(e *Engine) {
		e.trace = l
	}
}

// WithClock sets the turn clock. Use NewClockAt to resume a session.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSessionGenerator sets the generator for the engine's session token.
func WithSessionGenerator(g SessionGenerator) EngineOption {
	return func(e *Engine) {
		e.sessions = g
	}
}

// New creates an Engine for a compiled procedure.
//
// The procedure is re-verified (stage contract, unit IDs, hash); an invalid
// procedure returns the *compiler.CompileError and no engine.
func New(proc *ir.Procedure, opts ...EngineOption) (*Engine, error) {
	if err := compiler.Verify(proc); err != nil {
		return nil, err
	}

	e := &Engine{
		proc:      proc,
		fields:    slices.Clone(DefaultFields),
		scanDepth: DefaultScanDepth,
		rand:      globalRand{},
		clock:     NewClock(),
		sessions:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.session = e.sessions.Generate()
	if e.trace == nil {
		e.trace = trace.NewLogger(e.session)
	}
	if e.scanDepth <= 0 {
		e.scanDepth = DefaultScanDepth
	}
	e.persistent = persistentKeys(proc, e.persistent)
	e.keys = sourceKeys(proc, e.fields, e.persistent)
	return e, nil
}

// Session returns the engine's session token.
func (e *Engine) Session() string {
	return e.session
}

// Procedure returns the procedure the engine runs.
func (e *Engine) Procedure() *ir.Procedure {
	return e.proc
}

// Trace returns the engine's trace logger.
func (e *Engine) Trace() *trace.Logger {
	return e.trace
}

// TurnInput is the per-turn input.
type TurnInput struct {
	UserText  string
	History   []ir.Message
	Overrides ir.Values // per-turn source overrides
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	Context *ir.ExecutionContext
	Log     *ir.TurnLog
	Diff    DiffReport
}

// Run executes one turn.
//
// Unit failures are recorded in the turn log and never returned. Errors are
// returned only when the turn as a whole cannot proceed (another turn in
// progress, source resolution, trace misuse, cancellation, write-back); no
// partial result accompanies them.
func (e *Engine) Run(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrTurnInProgress
	}
	defer e.running.Store(false)

	if err := ctx.Err(); err != nil {
		return nil, e.cancelled(0, err)
	}

	resolver := source.NewResolver(in.Overrides, e.project, e.static)
	values, tiers, err := resolver.ResolveAll(ctx, e.keys)
	if err != nil {
		return nil, newSetupError(e.session, 0, "resolve sources", err)
	}

	// The clock only advances once the turn's state is committed, so failed
	// or cancelled turns leave no gap in the session's numbering.
	turn := e.clock.Current() + 1
	slog.Debug("turn starting",
		"session", e.session,
		"turn", turn,
		"units", len(e.proc.Units),
		"sources", len(values),
	)

	overridden := overriddenValues(values, tiers)
	ec := e.assemble(turn, in, values)
	snapshot := ec.Clone()

	if err := e.trace.StartTurn(turn, in.UserText); err != nil {
		return nil, newSetupError(e.session, turn, "start trace", err)
	}

	log := &ir.TurnLog{Session: e.session, Turn: turn, Message: in.UserText, Entries: []ir.LogEntry{}}
	var logErr error
	scope := NewScope(ec, func(entry ir.LogEntry) {
		log.Entries = append(log.Entries, entry)
		if err := e.trace.Log(entry); err != nil && logErr == nil {
			logErr = err
		}
	}, e.rand, e.scanDepth)

	for _, u := range e.proc.Units {
		if err := ctx.Err(); err != nil {
			e.trace.AbortTurn()
			return nil, e.cancelled(turn, err)
		}
		if err := e.runUnit(scope, u); err != nil {
			uerr := newUnitError(e.session, turn, u.Key, err)
			slog.Warn("unit failed",
				"session", e.session,
				"turn", turn,
				"unit", u.Key,
				"error", err,
			)
			scope.log(ir.LogEntry{
				Name:     unitName(u),
				Category: u.Category,
				Reason:   err.Error(),
				Metadata: map[string]any{"unit": u.Key, "code": string(uerr.Code)},
			})
		}
	}

	if logErr != nil {
		e.trace.AbortTurn()
		return nil, newSetupError(e.session, turn, "record trace", logErr)
	}
	if err := e.writeBack(ctx, ec, overridden); err != nil {
		e.trace.AbortTurn()
		return nil, &RuntimeError{
			Code:    ErrCodePersistFailed,
			Message: "write back persistent sources",
			Session: e.session,
			Turn:    turn,
			Err:     err,
		}
	}
	e.clock.Next()
	if err := e.trace.EndTurn(); err != nil {
		return nil, newSetupError(e.session, turn, "end trace", err)
	}
	log.Closed = true

	// Project state is committed at this point. A failed archive write keeps
	// the closed turn in the logger; the next Flush retries it.
	if err := e.trace.Flush(ctx); err != nil {
		return nil, &RuntimeError{
			Code:    ErrCodePersistFailed,
			Message: "archive turn log",
			Session: e.session,
			Turn:    turn,
			Err:     err,
		}
	}

	diff := Diff(snapshot, ec)
	slog.Info("turn complete",
		"session", e.session,
		"turn", turn,
		"entries", len(log.Entries),
		"fields_changed", len(diff.Fields),
		"tags_added", len(diff.Tags),
		"override_sources", countTier(tiers, source.TierOverride),
	)
	return &TurnResult{Context: ec, Log: log, Diff: diff}, nil
}

// runUnit runs one unit and converts a panic into an error.
func (e *Engine) runUnit(s *Scope, u ir.Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return RunUnit(s, u)
}

func (e *Engine) cancelled(turn int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCancelled,
		Message: "turn cancelled",
		Session: e.session,
		Turn:    turn,
		Err:     err,
	}
}

// assemble builds the turn's initial context from resolved sources and the
// history. The current user message is appended to the history.
func (e *Engine) assemble(turn int, in TurnInput, values ir.Values) *ir.ExecutionContext {
	ec := ir.NewExecutionContext(e.fields...)
	ec.Turn = turn
	ec.UserText = in.UserText
	ec.History = append(slices.Clone(in.History), ir.Message{Role: "user", Content: in.UserText})

	for _, name := range e.fields {
		if v, ok := values[source.FieldKey(name)]; ok {
			ec.SetField(name, ir.FormatValue(v))
		}
	}
	if v, ok := values[source.KeyActiveActors]; ok {
		ec.ActiveActors = source.SplitActors(ir.FormatValue(v))
	}
	if n, ok := ir.AsInt(values[source.KeyTransient]); ok {
		ec.Transient = clamp(n)
	}
	if n, ok := ir.AsInt(values[source.KeyCumulative]); ok {
		ec.Cumulative = clamp(n)
	}
	ec.Sources = values
	return ec
}

// overriddenValues returns the starting value of every key resolved from
// the per-turn override tier.
func overriddenValues(values ir.Values, tiers map[string]source.Tier) ir.Values {
	out := ir.Values{}
	for key, tier := range tiers {
		if tier == source.TierOverride {
			out[key] = values[key]
		}
	}
	return out
}

// writeBack stores the final value of every persistent key in the project
// store, then mirrors it into the context's sources. A key that came from
// the override tier and ends the turn unchanged is not written: a one-off
// override never becomes the project default.
func (e *Engine) writeBack(ctx context.Context, ec *ir.ExecutionContext, overridden ir.Values) error {
	out := make(map[string]ir.Value, len(e.persistent))
	for _, key := range e.persistent {
		switch {
		case key == source.KeyTransient:
			out[key] = ir.Int64(ec.Transient)
		case key == source.KeyCumulative:
			out[key] = ir.Int64(ec.Cumulative)
		case strings.HasPrefix(key, source.KeyFieldPrefix):
			name := strings.TrimPrefix(key, source.KeyFieldPrefix)
			if !ec.HasField(name) {
				continue
			}
			out[key] = ir.String(ec.Field(name))
		default:
			v, ok := ec.Sources[key]
			if !ok {
				continue
			}
			out[key] = v
		}
		if start, ok := overridden[key]; ok && ir.FormatValue(start) == ir.FormatValue(out[key]) {
			delete(out, key)
		}
	}
	if e.project != nil && len(out) > 0 {
		if err := e.project.PutSources(ctx, out); err != nil {
			return err
		}
	}
	for key, v := range out {
		ec.Sources[key] = v
	}
	return nil
}

// persistentKeys returns the configured keys plus the vibe tracks and every
// scoring counter, deduplicated in first-seen order.
func persistentKeys(proc *ir.Procedure, extra []string) []string {
	keys := []string{source.KeyTransient, source.KeyCumulative}
	for _, u := range proc.Units {
		if u.Scoring != nil {
			keys = appendKey(keys, u.Scoring.Counter)
		}
	}
	for _, k := range extra {
		keys = appendKey(keys, k)
	}
	return keys
}

// sourceKeys lists every key a turn resolves: field seeds, actors, vibe
// tracks, persistent keys and every non-metric numeric source.
func sourceKeys(proc *ir.Procedure, fields, persistent []string) []string {
	var keys []string
	for _, f := range fields {
		keys = appendKey(keys, source.FieldKey(f))
	}
	keys = appendKey(keys, source.KeyActiveActors)
	for _, k := range persistent {
		keys = appendKey(keys, k)
	}

	var visitRule func(r *ir.Rule)
	visitConds := func(conds []ir.Condition) {
		for _, c := range conds {
			if c.Kind == ir.CondNumeric {
				keys = appendKey(keys, c.Source)
			}
		}
	}
	visitRule = func(r *ir.Rule) {
		if r.Gates != nil {
			for _, n := range r.Gates.Numeric {
				keys = appendKey(keys, n.Source)
			}
		}
		for i := range r.Shifts {
			visitRule(&r.Shifts[i])
		}
	}

	for _, u := range proc.Units {
		switch {
		case u.Rule != nil:
			visitRule(u.Rule)
		case u.Cue != nil:
			for i := range u.Cue.Cues {
				visitRule(&u.Cue.Cues[i])
			}
		case u.Chain != nil:
			for _, b := range u.Chain.Blocks {
				visitConds(b.Conditions)
			}
		case u.Scoring != nil:
			visitConds(u.Scoring.Conditions)
		}
	}
	return keys
}

func appendKey(keys []string, k string) []string {
	if k == "" || strings.HasPrefix(k, "metric.") || slices.Contains(keys, k) {
		return keys
	}
	return append(keys, k)
}

func countTier(tiers map[string]source.Tier, tier source.Tier) int {
	n := 0
	for _, t := range tiers {
		if t == tier {
			n++
		}
	}
	return n
}
