package flags

import "errors"

// Predefined errors for the flags package.
var (
	// ErrInvalidConfig indicates a flag, experiment, or safety configuration
	// that violates its structural invariants.
	ErrInvalidConfig = errors.New("flags: invalid configuration")
)
