package linesim

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by validation and the kernel itself.
var (
	// ErrInvalidGraph indicates the process graph failed validation:
	// a dependency cycle, a missing predecessor, or no start node.
	ErrInvalidGraph = errors.New("invalid process graph")

	// ErrInvalidConfig indicates a configuration value out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInfeasible indicates at least one task requires more workers
	// than the pool holds, so no schedule can ever run it.
	ErrInfeasible = errors.New("infeasible process")

	// ErrHorizon is returned from suspension points when the virtual
	// clock reaches the time budget and the run unwinds. It never
	// escapes Run; recoverable time exhaustion surfaces as a successful
	// result with truthful counters.
	ErrHorizon = errors.New("time budget exhausted")
)

// Error provides context about a failed simulation run: which phase
// failed, the human-readable diagnosis carried into the failed result,
// and the underlying sentinel for errors.Is checks.
type Error struct {
	Timestamp time.Time
	SimID     string
	Phase     string
	Diagnosis string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Diagnosis != "" {
		return fmt.Sprintf("%s: %s", e.Phase, e.Diagnosis)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying sentinel, supporting errors.Is and
// errors.As with the standard error handling patterns.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsValidation reports whether the error arose before any event was
// scheduled (invalid graph, invalid config, or infeasible process).
func (e *Error) IsValidation() bool {
	if e == nil {
		return false
	}
	return errors.Is(e.Err, ErrInvalidGraph) ||
		errors.Is(e.Err, ErrInvalidConfig) ||
		errors.Is(e.Err, ErrInfeasible)
}
