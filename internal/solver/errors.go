package solver

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by Run before Init, Generate, Seed or
	// Restore succeeded.
	ErrNotInitialized = errors.New("solver: not initialized")

	// ErrAlreadyInitialized is returned when a second initialization is
	// attempted.
	ErrAlreadyInitialized = errors.New("solver: already initialized")
)

// StepError wraps the failure of one stage of a step.
type StepError struct {
	Step    int
	Time    float64
	Stage   Stage
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %s: %v", e.Step, e.Time, e.Stage, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
