package safety

import (
	"context"
	"time"

	"github.com/dmitrymomot/rolloutkit/pkg/flags"
)

// FlagStore is the control plane's view of rolled-out flags. Implementations
// back it with the authoritative flag storage.
type FlagStore interface {
	// ListActiveFlags returns flags that are enabled with a rollout
	// percentage above zero; only those are worth monitoring.
	ListActiveFlags(ctx context.Context) ([]flags.FlagConfig, error)

	// GetFlag returns the current snapshot or ErrFlagNotFound.
	GetFlag(ctx context.Context, flagID string) (*flags.FlagConfig, error)

	// GetSafetyConfig returns the flag's monitoring policy or
	// ErrSafetyConfigNotFound when the flag has none and global defaults
	// apply.
	GetSafetyConfig(ctx context.Context, flagID string) (*flags.SafetyConfig, error)

	// ApplyRollback atomically sets the flag's rollout percentage to
	// record.TargetPercentage and appends the audit record, committed
	// together or not at all. It must fail with ErrUpdateConflict when the
	// flag's percentage no longer equals record.PreviousPercentage, so a
	// concurrent manual edit is never silently overwritten.
	ApplyRollback(ctx context.Context, record flags.RollbackRecord) error
}

// MetricsQuery reads current health-metric values for a flag. It is produced
// by the external metrics-aggregation pipeline and must be cheap enough to
// call at monitor-tick frequency. Implementations return ErrMetricUnavailable
// (possibly wrapped) when no value exists for the window.
type MetricsQuery interface {
	CurrentValue(ctx context.Context, flagID, metric string, window time.Duration) (float64, error)
}

// AuditSink receives rollback audit records that could not be written inside
// the rollback transaction itself, such as records for failed attempts.
type AuditSink interface {
	Append(ctx context.Context, record flags.RollbackRecord) error
}

// MetricStatus classifies one metric reading against its thresholds.
type MetricStatus string

const (
	StatusHealthy   MetricStatus = "healthy"
	StatusWarning   MetricStatus = "warning"
	StatusUnhealthy MetricStatus = "unhealthy"

	// StatusUnknown means the metric could not be read. Unknown is never
	// treated as unhealthy: the monitor must not roll back on missing data.
	StatusUnknown MetricStatus = "unknown"
)

// MetricHealth is the evaluated state of a single metric.
type MetricHealth struct {
	Name      string                `json:"name"`
	Value     float64               `json:"value"`
	Status    MetricStatus          `json:"status"`
	Threshold flags.MetricThreshold `json:"threshold"`
}

// FlagHealth aggregates the metric states for one flag. The flag is unhealthy
// if any metric is unhealthy.
type FlagHealth struct {
	FlagID    string         `json:"flag_id"`
	FlagKey   string         `json:"flag_key"`
	Healthy   bool           `json:"healthy"`
	Metrics   []MetricHealth `json:"metrics"`
	CheckedAt time.Time      `json:"checked_at"`
}

// FirstUnhealthy returns the first metric that crossed its critical
// threshold, or nil when the flag is healthy. Metric order is deterministic
// (sorted by name), so the same degradation always names the same metric in
// the rollback reason.
func (h FlagHealth) FirstUnhealthy() *MetricHealth {
	for i := range h.Metrics {
		if h.Metrics[i].Status == StatusUnhealthy {
			return &h.Metrics[i]
		}
	}
	return nil
}
