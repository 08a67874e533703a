package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/loregate/internal/compiler"
	"github.com/roach88/loregate/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// UnitSummary is one line of a compiled procedure listing.
type UnitSummary struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
	ID       string `json:"id"`
}

// CompilationResult summarizes a compiled procedure.
type CompilationResult struct {
	Version string        `json:"version"`
	Hash    string        `json:"hash"`
	Units   []UnitSummary `json:"units"`
	Output  string        `json:"output,omitempty"`
}

// CompilationStats counts units per category.
type CompilationStats struct {
	Stages  int
	Entries int
	Cues    int
	Chains  int
	Groups  int
	Scoring int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <library>",
		Short: "Compile a rule library into a procedure",
		Long: `Compile a rule library into an ordered, hashed procedure.

The library is loaded, checked against the rule shape rules and compiled.
With --output the procedure is written as a standalone JSON artifact that
any runner can execute.

Examples:
  loregate compile ./lore
  loregate compile ./lore -o procedure.json
  loregate compile library.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the procedure artifact to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadLibrary(path)
	if loadResult == nil {
		return outputCompileErrors(formatter, loadErrors)
	}
	formatter.VerboseLog("Loaded %d file(s) from %s", loadResult.FileCount, path)
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	if shape := compiler.Validate(loadResult.Library); len(shape) > 0 {
		errs := make([]error, len(shape))
		for i, e := range shape {
			errs[i] = e
		}
		return outputCompileErrors(formatter, errs)
	}

	proc, err := compiler.Compile(loadResult.Library)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}
	for _, u := range proc.Units {
		formatter.VerboseLog("Compiled %s (priority %d)", u.Key, u.Priority)
	}

	result := summarize(proc)
	if opts.Output != "" {
		if err := writeArtifact(proc, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		result.Output = opts.Output
	}

	return outputCompileSuccess(formatter, result, calculateStats(proc))
}

func summarize(proc *ir.Procedure) *CompilationResult {
	result := &CompilationResult{
		Version: proc.Version,
		Hash:    proc.Hash,
		Units:   make([]UnitSummary, len(proc.Units)),
	}
	for i, u := range proc.Units {
		result.Units[i] = UnitSummary{Key: u.Key, Category: u.Category, Priority: u.Priority, ID: u.ID}
	}
	return result
}

func calculateStats(proc *ir.Procedure) CompilationStats {
	var stats CompilationStats
	for _, u := range proc.Units {
		switch u.Category {
		case ir.CategoryStage:
			stats.Stages++
		case ir.CategoryEntry:
			stats.Entries++
		case ir.CategoryCue:
			stats.Cues++
		case ir.CategoryChain:
			stats.Chains++
		case ir.CategoryGroup:
			stats.Groups++
		case ir.CategoryScoring:
			stats.Scoring++
		}
	}
	return stats
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d unit(s): %d stage(s), %d entr(ies), %d cue table(s), %d chain(s), %d group(s), %d scoring rule(s)\n",
		len(result.Units), stats.Stages, stats.Entries, stats.Cues, stats.Chains, stats.Groups, stats.Scoring)
	fmt.Fprintf(w, "  hash: %s\n\n", result.Hash)

	for i, u := range result.Units {
		fmt.Fprintf(w, "  %2d. %-28s priority %d\n", i+1, u.Key, u.Priority)
	}

	if result.Output != "" {
		fmt.Fprintf(w, "\nWrote procedure to %s\n", result.Output)
	}
	return nil
}

func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors reports load, shape and compile errors. All of them
// are command-level errors (exit code 2).
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		cliErrors[i].Code, cliErrors[i].Message = parseCompileError(err)
	}

	if formatter.JSON() {
		if err := formatter.WriteJSON(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for i, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", cliErrors[i].Code, cliErrors[i].Message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var shapeErr compiler.RuleShapeError
	if errors.As(err, &shapeErr) {
		return shapeErr.Code, shapeErr.Field + ": " + shapeErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Field + ": " + compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeArtifact writes the exported procedure artifact.
func writeArtifact(proc *ir.Procedure, filename string) error {
	data, err := compiler.Export(proc)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
