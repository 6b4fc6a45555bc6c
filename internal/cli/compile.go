package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axisenergy/checklist/internal/compiler"
	"github.com/axisenergy/checklist/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledProgram is one compiled program with its content hash.
type CompiledProgram struct {
	Hash string          `json:"hash"`
	Spec *ir.ProgramSpec `json:"spec"`
}

// CompilationResult holds the compiled catalogue.
type CompilationResult struct {
	IRVersion string            `json:"ir_version"`
	Programs  []CompiledProgram `json:"programs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <programs-dir>",
		Short: "Compile CUE programs to canonical IR",
		Long: `Compile the CUE program catalogue in a directory to canonical IR.

Every program is checked against the program schema and validated
(dangling targets, operators, operands) before it is emitted. With -o the
catalogue is written as canonical JSON: sorted keys, no insignificant
whitespace, identical bytes for identical programs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cat, loadErrors := LoadPrograms(dir, compiler.LoadModeCollectAll)
	if cat == nil {
		return outputLoadFailure(formatter, loadErrors)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", cat.FileCount, dir)

	errs := loadErrors
	result := &CompilationResult{IRVersion: ir.IRVersion}
	for _, spec := range cat.Programs {
		formatter.VerboseLog("Compiling program: %s", spec.Slug)

		if verrs := compiler.Validate(spec); len(verrs) > 0 {
			for _, ve := range verrs {
				errs = append(errs, &LoadError{
					Code:    ve.Code,
					Message: fmt.Sprintf("program %q: %s: %s", spec.Slug, ve.Field, ve.Message),
				})
			}
			continue
		}

		hash, err := ir.ProgramHash(spec)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
			continue
		}
		result.Programs = append(result.Programs, CompiledProgram{Hash: hash, Spec: spec})
	}

	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, cat.FileCount, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, files int, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d program(s) from %d file(s)\n\n", len(result.Programs), files)

	fmt.Fprintln(formatter.Writer, "Programs:")
	for _, p := range result.Programs {
		fmt.Fprintf(formatter.Writer, "  %s: %d instrument(s), %d condition(s)\n",
			p.Spec.Slug, len(p.Spec.Instruments), len(p.Spec.Conditions))
		if formatter.Verbose {
			fmt.Fprintf(formatter.Writer, "    hash %s\n", p.Hash)
		}
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputLoadFailure reports a catalogue that could not be compiled at all.
func outputLoadFailure(formatter *OutputFormatter, errs []error) error {
	code, message := parseCompileError(errs[0])
	return formatter.Fail(ExitCommandError, code, message, nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	exitErr := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return exitErr
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result to a file in canonical JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := canonicalJSON(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// canonicalJSON encodes v through the IR so the output has canonical key
// order and number formatting.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling IR: %w", err)
	}
	value, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, fmt.Errorf("decoding IR: %w", err)
	}
	canonical, err := ir.MarshalCanonical(value)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing IR: %w", err)
	}
	return canonical, nil
}
