package filter

import "errors"

var (
	// ErrDegenerateWeights is returned when particle weights sum up to zero or to a non-finite value
	ErrDegenerateWeights = errors.New("degenerate particle weights")
	// ErrIndexOutOfRange marks a resampling search that ran out of the cumulative weights.
	// It is recovered by clamping and only ever reported in logs.
	ErrIndexOutOfRange = errors.New("resampling index out of range")
	// ErrShapeMismatch is returned when a batch has invalid dimensions
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNonFiniteState is returned when propagated particles contain NaN or Inf values
	ErrNonFiniteState = errors.New("non-finite particle state")
)
