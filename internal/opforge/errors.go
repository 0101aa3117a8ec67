package opforge

import (
	"errors"
	"fmt"

	"github.com/opforge-ml/opforge/internal/tensor"
)

// Error kinds reported by the extension core. All are returned
// synchronously to the caller of the failing operation; none are retried
// internally.
var (
	ErrDuplicateRegistration = errors.New("operator already registered")
	ErrUnknownOperator       = errors.New("unknown operator")
	ErrVersionMismatch       = errors.New("operator version not registered")
	ErrShapeMismatch         = errors.New("shape mismatch")
	ErrIndexOutOfRange       = errors.New("index out of range")
	ErrAllocationFailure     = errors.New("scratch allocation failed")
)

// ShapeError reports an arity or dimension-compatibility violation with
// enough detail to identify the offending input.
type ShapeError struct {
	Op      string       // operator name (e.g. "Attention")
	Input   int          // input position, -1 when not input-specific
	Got     tensor.Shape // offending shape, nil when not shape-specific
	Details string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Input >= 0 && e.Got != nil {
		return fmt.Sprintf("%s: input %d with shape %s: %s", e.Op, e.Input, e.Got, e.Details)
	}
	if e.Input >= 0 {
		return fmt.Sprintf("%s: input %d: %s", e.Op, e.Input, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Details)
}

// Unwrap makes ShapeError match ErrShapeMismatch via errors.Is.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// Shapef builds a ShapeError not tied to a single input.
func Shapef(op, format string, args ...any) error {
	return &ShapeError{Op: op, Input: -1, Details: fmt.Sprintf(format, args...)}
}

// ShapeInputf builds a ShapeError for a specific input position.
func ShapeInputf(op string, input int, got tensor.Shape, format string, args ...any) error {
	return &ShapeError{Op: op, Input: input, Got: got, Details: fmt.Sprintf(format, args...)}
}
