package safety

import "errors"

// Predefined errors for the safety package.
var (
	// ErrNilStore indicates a component was created without a flag store.
	ErrNilStore = errors.New("safety: flag store cannot be nil")

	// ErrNilMetrics indicates a checker was created without a metrics query.
	ErrNilMetrics = errors.New("safety: metrics query cannot be nil")

	// ErrNilAuditSink indicates an executor was created without an audit sink.
	ErrNilAuditSink = errors.New("safety: audit sink cannot be nil")

	// ErrFlagNotFound is returned by FlagStore implementations for unknown
	// flag ids.
	ErrFlagNotFound = errors.New("safety: feature flag not found")

	// ErrSafetyConfigNotFound means the flag has no monitoring policy of its
	// own and the global defaults apply.
	ErrSafetyConfigNotFound = errors.New("safety: safety config not found")

	// ErrMetricUnavailable means the metrics pipeline has no value for the
	// requested metric and window. The affected metric degrades to unknown
	// status and never triggers a rollback.
	ErrMetricUnavailable = errors.New("safety: metric unavailable")

	// ErrUpdateConflict means the flag's rollout percentage changed between
	// read and conditional write, typically due to a concurrent manual edit.
	// The rollback is not applied; both revisions stay visible in the audit
	// trail.
	ErrUpdateConflict = errors.New("safety: concurrent rollout update conflict")

	// ErrInvalidRequest indicates a malformed rollback request.
	ErrInvalidRequest = errors.New("safety: invalid rollback request")
)
