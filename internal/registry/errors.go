package registry

import (
	"errors"
	"fmt"
	"strings"
)

// LoadError reports a catalogue that failed to compile. The previous
// catalogue, if any, stays in service.
type LoadError struct {
	Source string
	Errors []error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("load %s: %v", e.Source, e.Errors[0])
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("load %s: %d errors: %s", e.Source, len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual compile errors to errors.Is and errors.As.
func (e *LoadError) Unwrap() []error {
	return e.Errors
}

// IsLoadError returns true if the error is a catalogue load failure.
// Uses errors.As to handle wrapped errors.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
