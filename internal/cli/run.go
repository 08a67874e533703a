package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/loregate/internal/compiler"
	"github.com/roach88/loregate/internal/config"
	"github.com/roach88/loregate/internal/engine"
	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/store"
	"github.com/roach88/loregate/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Library  string
	Database string
	Session  string
	Seed     uint64
	Set      []string // key=value source overrides

	// SessionGenerator overrides the token for a new session (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator engine.SessionGenerator
}

// TurnOutput is the printable outcome of one turn.
type TurnOutput struct {
	Session string            `json:"session"`
	Turn    int               `json:"turn"`
	Intent  string            `json:"intent,omitempty"`
	Tags    []string          `json:"tags"`
	Fields  []ir.FieldValue   `json:"fields"`
	Entries []ir.LogEntry     `json:"entries"`
	Diff    engine.DiffReport `json:"diff"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <message>",
		Short: "Run one turn against a library",
		Long: `Run one user message through a compiled library.

Sources come from --set overrides first, then the project store in the
database, then static_sources from the config file. Persistent sources
and the turn log are written back to the database, so repeated runs with
the same --session continue one conversation.

Examples:
  loregate run --library ./lore --db ./lore.db "hello, is this the tavern?"
  loregate run -c loregate.yaml --session s1 --set active_actors=Mira "where is she?"
  loregate run -c loregate.yaml --format json "it is storming"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Library, "library", "", "library directory or file (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token to continue")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "seed the probability source")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override a source for this turn (key=value, repeatable)")

	return cmd
}

// resolveConfig loads the config file if one was given and applies the
// command-line overrides on top.
func resolveConfig(opts *RootOptions, cmd *cobra.Command, library, database string) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if library != "" {
		cfg.Library = library
	}
	if database != "" {
		cfg.Database = database
	}
	if f := cmd.Flags().Lookup("seed"); f != nil && f.Changed {
		seed, err := cmd.Flags().GetUint64("seed")
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid seed", err)
		}
		cfg.Seed = &seed
	}
	if cfg.Library == "" {
		return nil, NewExitError(ExitCommandError, "no library: pass --library or set library in the config file")
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	configureLogging(cmd.ErrOrStderr(), opts.Verbose, level)
	return cfg, nil
}

func runTurn(opts *RunOptions, message string, cmd *cobra.Command) error {
	cfg, err := resolveConfig(opts.RootOptions, cmd, opts.Library, opts.Database)
	if err != nil {
		return err
	}
	if opts.Session != "" {
		cfg.Session = opts.Session
	}

	overrides, err := ParseOverrides(opts.Set)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --set", err)
	}

	slog.Debug("compiling library", "path", cfg.Library)
	proc, err := compiler.LoadAndCompile(cfg.Library)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile library", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := cfg.Session
	if session == "" {
		gen := opts.SessionGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		session = gen.Generate()
	}

	history, last, err := sessionHistory(ctx, st, session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	slog.Debug("session ready", "session", session, "last_turn", last, "history", len(history))

	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	engineOpts = append(engineOpts,
		engine.WithProjectStore(st),
		engine.WithTrace(trace.NewLogger(session, trace.WithSink(st))),
		engine.WithSessionGenerator(engine.NewFixedGenerator(session)),
		engine.WithClock(engine.NewClockAt(last)),
	)
	eng, err := engine.New(proc, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	res, err := eng.Run(ctx, engine.TurnInput{
		UserText:  message,
		History:   history,
		Overrides: overrides,
	})
	if err != nil {
		var rerr *engine.RuntimeError
		if errors.As(err, &rerr) {
			return WrapExitError(ExitFailure, fmt.Sprintf("turn failed (%s)", rerr.Code), err)
		}
		return WrapExitError(ExitFailure, "turn failed", err)
	}

	return outputTurn(newFormatter(opts.RootOptions, cmd), session, res)
}

// sessionHistory rebuilds the user-message history of an archived session
// and returns its last turn number.
func sessionHistory(ctx context.Context, st *store.Store, session string) ([]ir.Message, int, error) {
	logs, err := st.ReadTurnLogs(ctx, session)
	if err != nil {
		return nil, 0, err
	}
	history := make([]ir.Message, 0, len(logs))
	for _, l := range logs {
		history = append(history, ir.Message{Role: "user", Content: l.Message})
	}
	last, err := st.LastTurn(ctx, session)
	if err != nil {
		return nil, 0, err
	}
	return history, last, nil
}

// ParseOverrides turns key=value pairs into source values. Values are
// parsed as integers or booleans where possible.
func ParseOverrides(pairs []string) (ir.Values, error) {
	out := make(ir.Values, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("override %q must be key=value", p)
		}
		out[key] = ir.ParseValue(value)
	}
	return out, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func outputTurn(formatter *OutputFormatter, session string, res *engine.TurnResult) error {
	ec := res.Context
	out := TurnOutput{
		Session: session,
		Turn:    ec.Turn,
		Intent:  ec.Intent,
		Tags:    ec.Tags(),
		Entries: res.Log.Entries,
		Diff:    res.Diff,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	for _, name := range ec.FieldNames() {
		out.Fields = append(out.Fields, ir.FieldValue{Name: name, Value: ec.Field(name)})
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Session %s, turn %d\n", out.Session, out.Turn)
	if out.Intent != "" {
		fmt.Fprintf(w, "Intent: %s\n", out.Intent)
	}
	fmt.Fprintf(w, "Tags: %s\n\n", strings.Join(out.Tags, ", "))

	for _, f := range out.Fields {
		fmt.Fprintf(w, "[%s]\n%s\n\n", f.Name, f.Value)
	}

	fmt.Fprintln(w, "Trace:")
	writeEntries(w, out.Entries)
	return nil
}
