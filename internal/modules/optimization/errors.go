package optimization

import "errors"

// ErrInsufficientData is returned when no aligned return observations exist
// across the supplied price series.
var ErrInsufficientData = errors.New("insufficient price data to estimate covariance")

// ErrUnresolvedAllocation is returned when no candidate weight vector can be
// produced at all (fewer than 2 valid assets after filtering). Partial or
// approximate convergence is never an error.
var ErrUnresolvedAllocation = errors.New("no allocation could be produced")

// InputValidationError is a structural problem with caller-supplied input.
// It is fatal and surfaced immediately at the boundary; the numeric core
// never solves around it.
type InputValidationError struct {
	Field string
	Msg   string
}

func (e *InputValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// NewInputValidationError creates a new input validation error.
func NewInputValidationError(field, msg string) *InputValidationError {
	return &InputValidationError{Field: field, Msg: msg}
}
