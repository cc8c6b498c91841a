package assignment

import "errors"

// Predefined errors for the assignment package.
var (
	// ErrNilStore indicates a service was created without an assignment store.
	ErrNilStore = errors.New("assignment: store cannot be nil")

	// ErrEmptyUserID indicates an assignment was requested without a user id.
	ErrEmptyUserID = errors.New("assignment: user id cannot be empty")

	// ErrInvalidExperiment indicates a structurally invalid experiment config.
	ErrInvalidExperiment = errors.New("assignment: invalid experiment configuration")

	// ErrExperimentNotActive indicates the experiment's status excludes it
	// from assignment.
	ErrExperimentNotActive = errors.New("assignment: experiment is not active")

	// ErrAssignmentNotFound is returned by Store implementations when no
	// assignment exists for the (user, experiment) pair.
	ErrAssignmentNotFound = errors.New("assignment: assignment not found")

	// ErrNotPersisted indicates the computed assignment could not be stored
	// within the configured retry attempts. The returned assignment is still valid for
	// this call; the next call recomputes the identical variant and retries
	// the write.
	ErrNotPersisted = errors.New("assignment: assignment not persisted")
)
