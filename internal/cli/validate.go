package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axisenergy/checklist/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Programs int                        `json:"programs"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []ProgramWarning           `json:"warnings,omitempty"`
}

// ProgramWarning is a cycle among one program's conditions.
type ProgramWarning struct {
	Program string `json:"program"`
	compiler.CycleWarning
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <programs-dir>",
		Short: "Validate programs without emitting IR",
		Long: `Validate the CUE program catalogue in a directory.

Reports every schema and validation error across all programs, and warns
about condition cycles: questions gated on each other can never activate
from an empty checklist.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, err := ValidateProgramsDir(dir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	formatter.VerboseLog("Validated %d program(s) in %s", result.Programs, dir)

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateProgramsDir validates every program in a directory. An error is
// returned only when the catalogue cannot be compiled at all.
func ValidateProgramsDir(dir string) (*ValidationResult, error) {
	cat, loadErrors := LoadPrograms(dir, compiler.LoadModeCollectAll)
	if cat == nil {
		return nil, loadErrors[0]
	}

	result := &ValidationResult{Programs: len(cat.Programs)}

	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    loadErr.Line(),
			})
		}
	}

	for _, spec := range cat.Programs {
		for _, ve := range compiler.Validate(spec) {
			ve.Field = spec.Slug + "." + ve.Field
			result.Errors = append(result.Errors, ve)
		}
		for _, w := range compiler.AnalyzeCycles(spec) {
			result.Warnings = append(result.Warnings, ProgramWarning{Program: spec.Slug, CycleWarning: w})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d program(s) valid\n", result.Programs)
	writeWarnings(formatter, result.Warnings)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result *ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.JSON() {
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, ve := range result.Errors {
		if ve.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", ve.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", ve.Code, ve.Field, ve.Message)
	}
	writeWarnings(formatter, result.Warnings)

	return exitErr
}

func writeWarnings(formatter *OutputFormatter, warnings []ProgramWarning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(formatter.Writer)
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s: %s\n", w.Program, w.Message)
	}
}
