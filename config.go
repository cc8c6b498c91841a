package rolloutkit

import "time"

// Config holds the environment-driven settings for the control plane
// facade. Load it with pkg/config:
//
//	var cfg rolloutkit.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
type Config struct {
	// ServiceName tags log records emitted by the control plane.
	ServiceName string `env:"ROLLOUT_SERVICE_NAME" envDefault:"rollout-control-plane"`

	// CacheTTL bounds how stale an evaluated flag or experiment snapshot
	// may be.
	CacheTTL time.Duration `env:"ROLLOUT_CACHE_TTL" envDefault:"300s"`

	// FetchTimeout caps a single configuration fetch on a cache miss.
	FetchTimeout time.Duration `env:"ROLLOUT_FETCH_TIMEOUT" envDefault:"2s"`

	// AssignmentRetryAttempts and AssignmentRetryInterval bound the
	// conditional-write retry loop for sticky assignments.
	AssignmentRetryAttempts int           `env:"ROLLOUT_ASSIGNMENT_RETRY_ATTEMPTS" envDefault:"3"`
	AssignmentRetryInterval time.Duration `env:"ROLLOUT_ASSIGNMENT_RETRY_INTERVAL" envDefault:"100ms"`

	// SafetyCheckInterval is the period between safety sweeps.
	SafetyCheckInterval time.Duration `env:"ROLLOUT_SAFETY_CHECK_INTERVAL" envDefault:"5m"`

	// AutomaticRollbacks enables rollback execution when a sweep finds an
	// unhealthy flag. When false the monitor only reports.
	AutomaticRollbacks bool `env:"ROLLOUT_SAFETY_AUTO_ROLLBACK" envDefault:"true"`

	// RollbackPercentage is the rollout percentage a rollback reduces a
	// flag to when the flag's own policy does not specify one.
	RollbackPercentage int `env:"ROLLOUT_SAFETY_ROLLBACK_PERCENTAGE" envDefault:"0"`

	// MetricsWindow is the lookback window for safety metric queries.
	MetricsWindow time.Duration `env:"ROLLOUT_SAFETY_METRICS_WINDOW" envDefault:"15m"`

	// EventBufferSize is the capacity of the evaluation/assignment event
	// buffer. Events beyond it are dropped, never blocking evaluations.
	EventBufferSize int `env:"ROLLOUT_EVENT_BUFFER_SIZE" envDefault:"1024"`
}
