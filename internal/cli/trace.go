package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/queryir"
	"github.com/roach88/loregate/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Turn     int    // optional - one turn of the session
	Rule     string   // optional - history of one rule across sessions
	Where    []string // optional - entry filters, field=value or field~text
}

// SessionInfo is one archived session in a listing.
type SessionInfo struct {
	Session  string `json:"session"`
	Turns    int    `json:"turns"`
	LastTurn int    `json:"last_turn"`
}

// RuleEvent is one archived outcome of a rule.
type RuleEvent struct {
	Session  string `json:"session"`
	Turn     int    `json:"turn"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Passed   bool   `json:"passed"`
	Reason   string `json:"reason"`
}

// TraceStats summarizes the entries in a trace listing.
type TraceStats struct {
	Turns   int `json:"turns"`
	Entries int `json:"entries"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
}

// TraceResult holds the trace output for one session.
type TraceResult struct {
	Session string        `json:"session"`
	Turns   []*ir.TurnLog `json:"turns"`
	Stats   TraceStats    `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect archived turn logs",
		Long: `Inspect the turn logs archived in a database.

Without --session or --rule, lists every archived session. With --session,
prints each turn's message and every rule outcome in execution order.
With --rule, shows every archived outcome of one rule or shift across
sessions, which answers "why did this never fire?".

--where searches log entries across the archive. Each filter is
field=value (exact) or field~text (substring, any case) over session,
turn, name, category, passed, reason, metadata and the turn's message.
--session, --turn and --rule narrow the search further.

Examples:
  loregate trace --db ./lore.db
  loregate trace --db ./lore.db --session s1
  loregate trace --db ./lore.db --session s1 --turn 3
  loregate trace --db ./lore.db --rule crimson-order --format json
  loregate trace --db ./lore.db --where passed=false --where message~storm`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to print")
	cmd.Flags().IntVar(&opts.Turn, "turn", 0, "print only this turn (with --session)")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "show the history of one rule")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter log entries (field=value or field~text, repeatable)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Turn != 0 && opts.Session == "" {
		return NewExitError(ExitCommandError, "--turn requires --session")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	switch {
	case len(opts.Where) > 0:
		return traceSearch(ctx, st, opts, formatter)
	case opts.Rule != "":
		return traceRule(ctx, st, opts.Rule, formatter)
	case opts.Session != "":
		return traceSession(ctx, st, opts.Session, opts.Turn, formatter)
	default:
		return traceSessions(ctx, st, formatter)
	}
}

func traceSessions(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	sums, err := st.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	infos := make([]SessionInfo, len(sums))
	for i, s := range sums {
		infos[i] = SessionInfo{Session: s.Session, Turns: s.Turns, LastTurn: s.LastTurn}
	}

	if formatter.JSON() {
		return formatter.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions archived.")
		return nil
	}
	for _, s := range infos {
		fmt.Fprintf(formatter.Writer, "%s  %d turn(s), last turn %d\n", s.Session, s.Turns, s.LastTurn)
	}
	return nil
}

func traceSession(ctx context.Context, st *store.Store, session string, turn int, formatter *OutputFormatter) error {
	logs, err := st.ReadTurnLogs(ctx, session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read turn logs", err)
	}
	if turn != 0 {
		logs = filterTurn(logs, turn)
	}

	result := TraceResult{Session: session, Turns: logs, Stats: traceStats(logs)}
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(logs) == 0 {
		fmt.Fprintf(w, "No turns found for session: %s\n", session)
		return nil
	}
	fmt.Fprintf(w, "Session %s\n", session)
	for _, l := range logs {
		fmt.Fprintf(w, "\nTurn %d: %q\n", l.Turn, l.Message)
		writeEntries(w, l.Entries)
	}
	s := result.Stats
	fmt.Fprintf(w, "\n%d turn(s), %d entr(ies): %d passed, %d failed\n", s.Turns, s.Entries, s.Passed, s.Failed)
	return nil
}

func traceRule(ctx context.Context, st *store.Store, name string, formatter *OutputFormatter) error {
	outcomes, err := st.RuleHistory(ctx, name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rule history", err)
	}
	events := ruleEvents(outcomes)

	if formatter.JSON() {
		return formatter.Success(events)
	}
	if len(events) == 0 {
		fmt.Fprintf(formatter.Writer, "No outcomes archived for rule: %s\n", name)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "Rule %s\n", name)
	for _, e := range events {
		fmt.Fprintf(formatter.Writer, "  %s %s turn %d: %s\n", mark(e.Passed), e.Session, e.Turn, e.Reason)
	}
	return nil
}

func traceSearch(ctx context.Context, st *store.Store, opts *TraceOptions, formatter *OutputFormatter) error {
	filter, err := queryir.ParseFilter(opts.Where)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --where", err)
	}
	var scope []queryir.Predicate
	if opts.Session != "" {
		scope = append(scope, &queryir.Equals{Field: "session", Value: ir.String(opts.Session)})
	}
	if opts.Turn != 0 {
		scope = append(scope, &queryir.Equals{Field: "turn", Value: ir.Int64(opts.Turn)})
	}
	if opts.Rule != "" {
		scope = append(scope, &queryir.Equals{Field: "name", Value: ir.String(opts.Rule)})
	}

	outcomes, err := st.SearchEntries(ctx, queryir.Conjoin(append(scope, filter)...))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to search log entries", err)
	}
	events := ruleEvents(outcomes)

	if formatter.JSON() {
		return formatter.Success(events)
	}
	if len(events) == 0 {
		fmt.Fprintln(formatter.Writer, "No log entries match.")
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(formatter.Writer, "  %s %s turn %d %-8s %-20s %s\n",
			mark(e.Passed), e.Session, e.Turn, e.Category, e.Name, e.Reason)
	}
	fmt.Fprintf(formatter.Writer, "\n%d entr(ies) matched\n", len(events))
	return nil
}

func ruleEvents(outcomes []store.RuleOutcome) []RuleEvent {
	events := make([]RuleEvent, len(outcomes))
	for i, o := range outcomes {
		events[i] = RuleEvent{
			Session:  o.Session,
			Turn:     o.Turn,
			Name:     o.Entry.Name,
			Category: o.Entry.Category,
			Passed:   o.Entry.Passed,
			Reason:   o.Entry.Reason,
		}
	}
	return events
}

func filterTurn(logs []*ir.TurnLog, turn int) []*ir.TurnLog {
	out := []*ir.TurnLog{}
	for _, l := range logs {
		if l.Turn == turn {
			out = append(out, l)
		}
	}
	return out
}

func traceStats(logs []*ir.TurnLog) TraceStats {
	s := TraceStats{Turns: len(logs)}
	for _, l := range logs {
		for _, e := range l.Entries {
			s.Entries++
			if e.Passed {
				s.Passed++
			} else {
				s.Failed++
			}
		}
	}
	return s
}

// writeEntries prints one line per log entry.
func writeEntries(w io.Writer, entries []ir.LogEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "  %s %-8s %-20s %s\n", mark(e.Passed), e.Category, e.Name, e.Reason)
	}
}

func mark(passed bool) string {
	if passed {
		return "✓"
	}
	return "✗"
}
