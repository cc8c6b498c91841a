package bucketing

import "errors"

// Predefined errors for the bucketing package.
var (
	// ErrNoVariants indicates an empty variant set was passed to AssignVariant.
	ErrNoVariants = errors.New("bucketing: variant set cannot be empty")

	// ErrInvalidAllocation indicates variant allocations are malformed or do not sum to 1.0.
	ErrInvalidAllocation = errors.New("bucketing: invalid variant allocation")

	// ErrInvalidTrafficAllocation indicates a traffic allocation outside [0,1].
	ErrInvalidTrafficAllocation = errors.New("bucketing: traffic allocation must be between 0 and 1")

	// ErrInvalidBucketCount indicates a non-positive bucket count.
	ErrInvalidBucketCount = errors.New("bucketing: bucket count must be positive")
)
