package responder

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyEvent indicates Respond was called with a zero-value event.
	ErrEmptyEvent = errors.New("event cannot be empty")

	// ErrTimeout indicates the engine invocation exceeded its timeout.
	ErrTimeout = errors.New("responder timed out")
)

// ExecutionError wraps a non-zero exit from the engine subprocess.
type ExecutionError struct {
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("responder failed (exit %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("responder failed (exit %d)", e.ExitCode)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError creates an ExecutionError.
func NewExecutionError(exitCode int, err error) *ExecutionError {
	return &ExecutionError{ExitCode: exitCode, Err: err}
}
