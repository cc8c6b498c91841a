package flags

import (
	"errors"
	"fmt"
	"time"
)

// ComparisonType says which direction of threshold crossing is unhealthy for a
// metric: greater_than for error rates and latencies, less_than for success
// rates and conversion metrics.
type ComparisonType string

const (
	CompareGreaterThan ComparisonType = "greater_than"
	CompareLessThan    ComparisonType = "less_than"
)

// MetricThreshold holds the warning and critical boundaries for one health
// metric of a monitored flag.
type MetricThreshold struct {
	WarningThreshold  float64        `json:"warning_threshold"`
	CriticalThreshold float64        `json:"critical_threshold"`
	Comparison        ComparisonType `json:"comparison_type"`
}

// Validate rejects thresholds with an unknown comparison direction.
func (m MetricThreshold) Validate() error {
	switch m.Comparison {
	case CompareGreaterThan, CompareLessThan:
		return nil
	default:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown comparison type %q", m.Comparison))
	}
}

// SafetyConfig is the per-flag health-monitoring policy. Flags without one
// fall back to the process-wide defaults.
type SafetyConfig struct {
	Enabled            bool                       `json:"enabled"`
	Metrics            map[string]MetricThreshold `json:"metrics"`
	RollbackPercentage int                        `json:"rollback_percentage"`
}

// Validate checks thresholds and the rollback target.
func (s *SafetyConfig) Validate() error {
	if s.RollbackPercentage < 0 || s.RollbackPercentage > 100 {
		return errors.Join(ErrInvalidConfig,
			fmt.Errorf("rollback percentage %d is outside [0,100]", s.RollbackPercentage))
	}
	for name, threshold := range s.Metrics {
		if err := threshold.Validate(); err != nil {
			return fmt.Errorf("metric %q: %w", name, err)
		}
	}
	return nil
}

// TriggerType says what initiated a rollback.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerAutomatic TriggerType = "automatic"
	TriggerScheduled TriggerType = "scheduled"
)

// RollbackRecord is an append-only audit entry written for every rollback
// attempt, successful or not.
type RollbackRecord struct {
	ID                 string      `json:"id"`
	FlagID             string      `json:"feature_flag_id"`
	Trigger            TriggerType `json:"trigger_type"`
	Reason             string      `json:"trigger_reason"`
	PreviousPercentage int         `json:"previous_percentage"`
	TargetPercentage   int         `json:"target_percentage"`
	Success            bool        `json:"success"`
	Error              string      `json:"error,omitempty"`
	ExecutedBy         string      `json:"executed_by"`
	CreatedAt          time.Time   `json:"created_at"`
}
