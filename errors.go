package rolloutkit

import "errors"

var (
	ErrNilConfigStore      = errors.New("rolloutkit: config store cannot be nil")
	ErrNilAssignmentStore  = errors.New("rolloutkit: assignment store cannot be nil")
	ErrSafetyNotConfigured = errors.New("rolloutkit: safety monitoring is not configured")
	ErrAlreadyStarted      = errors.New("rolloutkit: service already started")
	ErrNotStarted          = errors.New("rolloutkit: service not started")
)
