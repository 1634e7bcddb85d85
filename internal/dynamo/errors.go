package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidParameter indicates a precondition violation detected before stepping.
	ErrInvalidParameter = errors.New("dynamo: invalid parameter")

	// ErrNumericDegeneracy indicates a non-finite rate or state during stepping.
	ErrNumericDegeneracy = errors.New("dynamo: numeric degeneracy (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// InvalidParameter wraps ErrInvalidParameter with a formatted detail.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// SimError wraps an error with simulation context.
type SimError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Wrapped.Error())
}

func (e *SimError) Unwrap() error {
	return e.Wrapped
}
