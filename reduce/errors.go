package reduce

import "errors"

var (
	// ErrTooFewSamples is returned when there are not enough points to build a neighborhood graph
	ErrTooFewSamples = errors.New("too few samples")

	// ErrDimensionMismatch is returned when input vectors do not share one dimensionality
	ErrDimensionMismatch = errors.New("vectors have different dimensions")

	// ErrNonFinite is returned when the input or the computed layout contains NaN or Inf
	ErrNonFinite = errors.New("non-finite value")

	// ErrEmptyVector is returned when a vector has no components
	ErrEmptyVector = errors.New("vector is empty")

	// ErrInvalidParameter is returned for out-of-range parameters
	ErrInvalidParameter = errors.New("invalid parameter")
)
