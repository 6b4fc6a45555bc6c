package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/axisenergy/checklist/internal/checklist"
	"github.com/axisenergy/checklist/internal/compiler"
	"github.com/axisenergy/checklist/internal/registry"
	"github.com/axisenergy/checklist/internal/store"
	"github.com/axisenergy/checklist/programs"
)

// LoadError represents an error that occurred while loading programs.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadPrograms compiles the CUE program catalogue in dir.
//
// A nil catalogue means nothing could be compiled (missing directory, no
// files, CUE syntax errors). A non-nil catalogue with errors holds the
// programs that did compile; in LoadModeFailFast it stops at the first
// failing program.
func LoadPrograms(dir string, mode compiler.LoadMode) (*compiler.Catalogue, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("programs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing programs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := compiler.FindCUEFiles(os.DirFS(dir))
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	cat, errs := compiler.CompileDir(dir, mode)
	loadErrs := make([]error, len(errs))
	for i, err := range errs {
		loadErrs[i] = convertCompileError(err)
	}
	if cat == nil {
		return nil, loadErrs
	}
	if len(cat.Programs) == 0 && len(loadErrs) == 0 {
		loadErrs = append(loadErrs, &LoadError{Code: ErrCodeNoPrograms, Message: "no programs found in catalogue"})
	}
	return cat, loadErrs
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands. Program
// validation codes (E1xx) come from the compiler.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoPrograms  = "E008" // Catalogue declares no programs

	ErrCodeUnknownProgram = "E020" // Program slug not in catalogue
	ErrCodeStore          = "E021" // Database error
	ErrCodeSubject        = "E022" // Subject document unreadable
	ErrCodeAnswer         = "E023" // Answer rejected
	ErrCodeDrift          = "E024" // Stored evaluation no longer reproduces
	ErrCodeScenario       = "E025" // Scenario suite failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "program":
		return ErrCodeNoPrograms
	case field == "name":
		return compiler.ErrProgramNameEmpty
	case field == "instruments":
		return compiler.ErrProgramNoInstruments
	case field == "value":
		return compiler.ErrInvalidOperand
	case strings.HasSuffix(field, ".when"):
		return compiler.ErrInvalidOperator
	case strings.HasPrefix(field, "conditions."):
		return compiler.ErrInvalidNamespace
	default:
		return ErrCodeGeneric
	}
}

// openRegistry loads the program catalogue from dir, or the catalogue
// compiled into the binary when dir is empty.
func openRegistry(dir string, logger *slog.Logger) (*registry.Registry, error) {
	reg := registry.New(registry.WithLogger(logger))
	if dir == "" {
		if err := reg.LoadFS(programs.FS); err != nil {
			return nil, err
		}
		return reg, nil
	}
	if err := reg.LoadDir(dir); err != nil {
		return nil, err
	}
	return reg, nil
}

// openStore opens the answer store, requiring the file to exist unless
// create is set.
func openStore(path string, create bool) (*store.Store, error) {
	if path != ":memory:" && !create {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("database not found: %s", path)
		}
	}
	return store.Open(path)
}

// newService opens the catalogue and store behind a checklist service. The
// caller closes the returned store.
func newService(ctx context.Context, opts *RootOptions, programsFlag, path string, create bool) (*checklist.Service, *store.Store, error) {
	cfg := opts.config()
	logger := opts.logger()

	reg, err := openRegistry(programsDir(opts, programsFlag), logger)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}

	st, err := openStore(path, create)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}

	svc, err := checklist.New(ctx, st, reg,
		checklist.WithLogger(logger),
		checklist.WithMaxSweeps(cfg.Engine.MaxSweeps))
	if err != nil {
		st.Close()
		return nil, nil, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	return svc, st, nil
}

// setupError reports a newService failure.
func setupError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// dbPath resolves the database path: the flag wins over the config file.
func dbPath(opts *RootOptions, flag string) string {
	if flag != "" {
		return flag
	}
	return opts.config().Store.Path
}

// programError maps a catalogue lookup failure to an exit error.
func programError(f *OutputFormatter, slug string, err error) error {
	if errors.Is(err, registry.ErrUnknownProgram) {
		return f.Fail(ExitCommandError, ErrCodeUnknownProgram, fmt.Sprintf("unknown program %q", slug), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
