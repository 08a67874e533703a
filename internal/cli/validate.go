package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/loregate/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat tag-order warnings as failures
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                      `json:"valid"`
	Errors   []compiler.RuleShapeError `json:"errors,omitempty"`
	Warnings []compiler.OrderWarning   `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <library>",
		Short: "Check a library without writing a procedure",
		Long: `Check every rule in a library against the shape rules and analyze
tag flow across the compiled order.

Shape errors (E1xx) fail validation. Tag-order findings are reported as
warnings: a rule that reads a tag only a later unit emits, a tag nobody
emits, or a cycle of rules feeding each other tags. With --strict,
warning-level findings fail validation too.

Examples:
  loregate validate ./lore
  loregate validate ./lore --strict --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on tag-order warnings")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	result, err := ValidateLibrary(path)
	if err != nil {
		code, message := parseCompileError(err)
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	formatter.VerboseLog("Validated %s: %d error(s), %d warning(s)", path, len(result.Errors), len(result.Warnings))

	failed := !result.Valid
	if opts.Strict && !failed {
		for _, w := range result.Warnings {
			if w.Level == "warning" {
				failed = true
				break
			}
		}
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if failed {
			resp.Status = "error"
			resp.Error = firstValidationError(result)
		}
		if err := formatter.WriteJSON(resp); err != nil {
			return err
		}
	} else {
		outputValidationText(formatter, result, failed)
	}

	if failed {
		return NewExitError(ExitFailure,
			fmt.Sprintf("validation failed with %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings)))
	}
	return nil
}

// ValidateLibrary loads a library and runs the shape and tag-order checks.
// A returned error means the library could not be loaded or decoded.
func ValidateLibrary(path string) (*ValidationResult, error) {
	loadResult, loadErrors := LoadLibrary(path)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	result := &ValidationResult{
		Errors:   compiler.Validate(loadResult.Library),
		Warnings: []compiler.OrderWarning{},
	}
	result.Valid = len(result.Errors) == 0
	if !result.Valid {
		return result, nil
	}

	proc, err := compiler.Compile(loadResult.Library)
	if err != nil {
		return nil, err
	}
	result.Warnings = compiler.AnalyzeTagOrder(proc)
	return result, nil
}

func firstValidationError(result *ValidationResult) *CLIError {
	if len(result.Errors) > 0 {
		return &CLIError{Code: result.Errors[0].Code, Message: result.Errors[0].Message}
	}
	for _, w := range result.Warnings {
		if w.Level == "warning" {
			return &CLIError{Code: ErrCodeGeneric, Message: w.Message}
		}
	}
	return &CLIError{Code: ErrCodeGeneric, Message: "validation failed"}
}

func outputValidationText(formatter *OutputFormatter, result *ValidationResult, failed bool) {
	w := formatter.Writer
	if failed {
		fmt.Fprintln(w, "✗ Validation failed")
	} else {
		fmt.Fprintln(w, "✓ Library valid")
	}

	if len(result.Errors) > 0 {
		fmt.Fprintln(w)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  %s: %s\n", warn.Level, warn.Message)
	}
}
