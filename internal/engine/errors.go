package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/axisenergy/checklist/internal/compiler"
)

// ConfigError reports a program that failed validation when its graph was
// built. It is raised at load time, never during activation.
type ConfigError struct {
	Program string
	Errors  []compiler.ValidationError
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("program %q: %s", e.Program, e.Errors[0].Error())
	}
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("program %q: %d validation errors: %s", e.Program, len(e.Errors), strings.Join(msgs, "; "))
}

// IterationBoundError reports an activation that was still changing after
// the maximum number of sweeps. The partial result is still returned.
type IterationBoundError struct {
	Program   string
	MaxSweeps int
	Pending   []string // targets that would have activated in the next sweep
}

// Error implements the error interface.
func (e *IterationBoundError) Error() string {
	return fmt.Sprintf("program %q: activation did not converge within %d sweeps (still activating: %s)",
		e.Program, e.MaxSweeps, strings.Join(e.Pending, ", "))
}

// AnswerError reports an answer that does not fit its instrument.
type AnswerError struct {
	MeasureID string
	Value     string
	Reason    string
}

// Error implements the error interface.
func (e *AnswerError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("answer to %q: %s", e.MeasureID, e.Reason)
	}
	return fmt.Sprintf("answer %q to %q: %s", e.Value, e.MeasureID, e.Reason)
}

// IsConfigError returns true if the error is a program validation error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsIterationBoundError returns true if activation hit the sweep bound.
// Uses errors.As to handle wrapped errors.
func IsIterationBoundError(err error) bool {
	var ie *IterationBoundError
	return errors.As(err, &ie)
}

// IsAnswerError returns true if the error rejects an answer value.
// Uses errors.As to handle wrapped errors.
func IsAnswerError(err error) bool {
	var ae *AnswerError
	return errors.As(err, &ae)
}
