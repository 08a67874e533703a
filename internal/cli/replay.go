package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/loregate/internal/compiler"
	"github.com/roach88/loregate/internal/config"
	"github.com/roach88/loregate/internal/engine"
	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/store"
	"github.com/roach88/loregate/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Library  string
	Database string
	Session  string
	Seed     uint64
}

// ReplayTurn compares one archived turn with its replay.
type ReplayTurn struct {
	Turn    int      `json:"turn"`
	Message string   `json:"message"`
	Gained  []string `json:"gained,omitempty"` // passes now, did not before
	Lost    []string `json:"lost,omitempty"`   // passed before, does not now
}

// Changed reports whether the replay differs from the archive.
func (t ReplayTurn) Changed() bool {
	return len(t.Gained) > 0 || len(t.Lost) > 0
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Session   string       `json:"session"`
	Hash      string       `json:"procedure_hash"`
	Turns     []ReplayTurn `json:"turns"`
	Changed   int          `json:"changed"`
	Identical bool         `json:"identical"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an archived session against a library",
		Long: `Replay the user messages of an archived session through a library and
compare which rules pass with what the archive recorded.

Use it after editing a library to see which turns would now inject
different lore. The replay runs on a scratch store seeded only from the
config's static_sources; the database is read, never written. Probability
draws only reproduce with a fixed --seed (or seed in the config).

Exit codes:
  0 - Every turn passes the same rules
  1 - At least one turn differs
  2 - Command error (database not found, library errors, etc.)

Examples:
  loregate replay -c loregate.yaml --session s1 --seed 7
  loregate replay --library ./lore --db ./lore.db --session s1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Library, "library", "", "library directory or file (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to replay (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "seed the probability source")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	cfg, err := resolveConfig(opts.RootOptions, cmd, opts.Library, opts.Database)
	if err != nil {
		return err
	}

	proc, err := compiler.LoadAndCompile(cfg.Library)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile library", err)
	}

	archive, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer archive.Close()

	logs, err := archive.ReadTurnLogs(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read turn logs", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if len(logs) == 0 {
		if formatter.JSON() {
			return formatter.Success(ReplayResult{Session: opts.Session, Hash: proc.Hash, Turns: []ReplayTurn{}, Identical: true})
		}
		fmt.Fprintf(formatter.Writer, "No turns found for session: %s\n", opts.Session)
		return nil
	}

	result, err := ReplaySession(ctx, proc, cfg, opts.Session, logs)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", opts.Session), err)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Identical {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%d turn(s) changed", result.Changed)}
		}
		if err := formatter.WriteJSON(resp); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.Identical {
		return NewExitError(ExitFailure, fmt.Sprintf("%d turn(s) changed", result.Changed))
	}
	return nil
}

// ReplaySession runs the archived messages through proc on a scratch store
// and compares each turn's passed rules with the archive.
func ReplaySession(ctx context.Context, proc *ir.Procedure, cfg *config.Config, session string, logs []*ir.TurnLog) (*ReplayResult, error) {
	scratch, err := store.Open(":memory:")
	if err != nil {
		return nil, err
	}
	defer scratch.Close()

	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts,
		engine.WithProjectStore(scratch),
		engine.WithTrace(trace.NewLogger(session, trace.WithSink(scratch))),
		engine.WithSessionGenerator(engine.NewFixedGenerator(session)),
		engine.WithClock(engine.NewClockAt(logs[0].Turn-1)),
	)
	eng, err := engine.New(proc, engineOpts...)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{Session: session, Hash: proc.Hash, Turns: make([]ReplayTurn, 0, len(logs))}
	var history []ir.Message
	for _, archived := range logs {
		res, err := eng.Run(ctx, engine.TurnInput{UserText: archived.Message, History: history})
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", archived.Turn, err)
		}
		history = append(history, ir.Message{Role: "user", Content: archived.Message})

		turn := compareTurns(archived, res.Log)
		if turn.Changed() {
			result.Changed++
		}
		result.Turns = append(result.Turns, turn)
	}
	result.Identical = result.Changed == 0
	return result, nil
}

// compareTurns diffs the passed entry names of two logs of the same turn.
func compareTurns(archived, replayed *ir.TurnLog) ReplayTurn {
	was, now := passedSet(archived), passedSet(replayed)
	turn := ReplayTurn{Turn: archived.Turn, Message: archived.Message}
	for _, name := range now {
		if !slices.Contains(was, name) {
			turn.Gained = append(turn.Gained, name)
		}
	}
	for _, name := range was {
		if !slices.Contains(now, name) {
			turn.Lost = append(turn.Lost, name)
		}
	}
	return turn
}

func passedSet(log *ir.TurnLog) []string {
	var names []string
	for _, e := range log.Entries {
		if e.Passed && !slices.Contains(names, e.Name) {
			names = append(names, e.Name)
		}
	}
	return names
}

func outputReplayText(formatter *OutputFormatter, result *ReplayResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Replaying session %s against procedure %s\n\n", result.Session, result.Hash)

	for _, t := range result.Turns {
		if !t.Changed() {
			fmt.Fprintf(w, "✓ turn %d\n", t.Turn)
			continue
		}
		fmt.Fprintf(w, "✗ turn %d: %q\n", t.Turn, t.Message)
		for _, name := range t.Gained {
			fmt.Fprintf(w, "    + %s\n", name)
		}
		for _, name := range t.Lost {
			fmt.Fprintf(w, "    - %s\n", name)
		}
	}

	fmt.Fprintln(w)
	if result.Identical {
		fmt.Fprintf(w, "✓ All %d turn(s) identical\n", len(result.Turns))
		return
	}
	fmt.Fprintf(w, "%d of %d turn(s) changed\n", result.Changed, len(result.Turns))
}
