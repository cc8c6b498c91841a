package evaluator

import "errors"

// Predefined errors for the evaluator package.
var (
	// ErrNilStore indicates an evaluator was created without a config store.
	ErrNilStore = errors.New("evaluator: config store cannot be nil")

	// ErrEmptyUserID indicates an evaluation was requested without a user id.
	ErrEmptyUserID = errors.New("evaluator: user id cannot be empty")

	// ErrFlagNotFound is returned by ConfigStore implementations for unknown
	// flag keys. In the evaluation path it becomes a flag_not_found result,
	// never an error.
	ErrFlagNotFound = errors.New("evaluator: feature flag not found")

	// ErrExperimentNotFound is returned by ConfigStore implementations for
	// unknown experiment keys.
	ErrExperimentNotFound = errors.New("evaluator: experiment not found")
)
