package safety

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/logger"
)

// Checker evaluates a flag's health metrics against their thresholds.
type Checker struct {
	metrics      MetricsQuery
	window       time.Duration
	queryTimeout time.Duration
	logger       *slog.Logger
}

// CheckerOption configures checker creation.
type CheckerOption func(*Checker)

// WithWindow sets the look-back window passed to metric queries.
func WithWindow(window time.Duration) CheckerOption {
	return func(c *Checker) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithQueryTimeout bounds a single metric query.
func WithQueryTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) {
		if timeout > 0 {
			c.queryTimeout = timeout
		}
	}
}

// WithCheckerLogger sets the logger for degraded-metric reporting.
func WithCheckerLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChecker creates a health checker reading from metrics.
func NewChecker(metrics MetricsQuery, opts ...CheckerOption) (*Checker, error) {
	if metrics == nil {
		return nil, ErrNilMetrics
	}

	c := &Checker{
		metrics:      metrics,
		window:       15 * time.Minute,
		queryTimeout: 5 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// CheckFlag reads every configured metric and classifies it. An unavailable
// metric degrades to unknown status rather than failing the check or counting
// as unhealthy; the monitor must never act on missing data.
func (c *Checker) CheckFlag(ctx context.Context, flag flags.FlagConfig, cfg *flags.SafetyConfig) FlagHealth {
	health := FlagHealth{
		FlagID:    flag.ID,
		FlagKey:   flag.Key,
		Healthy:   true,
		CheckedAt: time.Now().UTC(),
	}

	// Sorted metric names keep rollback reasons deterministic.
	names := make([]string, 0, len(cfg.Metrics))
	for name := range cfg.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		threshold := cfg.Metrics[name]
		metric := c.checkMetric(ctx, flag, name, threshold)
		if metric.Status == StatusUnhealthy {
			health.Healthy = false
		}
		health.Metrics = append(health.Metrics, metric)
	}

	return health
}

func (c *Checker) checkMetric(ctx context.Context, flag flags.FlagConfig, name string, threshold flags.MetricThreshold) MetricHealth {
	queryCtx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	value, err := c.metrics.CurrentValue(queryCtx, flag.ID, name, c.window)
	if err != nil {
		c.logger.Warn("metric unavailable, treating as unknown",
			logger.FlagKey(flag.Key), logger.Metric(name), logger.Error(err))
		return MetricHealth{Name: name, Status: StatusUnknown, Threshold: threshold}
	}

	return MetricHealth{
		Name:      name,
		Value:     value,
		Status:    classify(value, threshold),
		Threshold: threshold,
	}
}

func classify(value float64, threshold flags.MetricThreshold) MetricStatus {
	crossed := func(boundary float64) bool {
		if threshold.Comparison == flags.CompareLessThan {
			return value < boundary
		}
		return value > boundary
	}

	switch {
	case crossed(threshold.CriticalThreshold):
		return StatusUnhealthy
	case crossed(threshold.WarningThreshold):
		return StatusWarning
	default:
		return StatusHealthy
	}
}
