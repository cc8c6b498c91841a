package flags

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/rolloutkit/pkg/bucketing"
	"github.com/dmitrymomot/rolloutkit/pkg/rules"
)

// FlagConfig is an immutable snapshot of a feature flag's rollout state. The
// authoritative copy lives in the external configuration store; evaluators
// never mutate it.
type FlagConfig struct {
	ID                string              `json:"id"`
	Key               string              `json:"key"`
	Enabled           bool                `json:"enabled"`
	RolloutPercentage int                 `json:"rollout_percentage"`
	TargetingRules    []rules.Rule        `json:"targeting_rules,omitempty"`
	DefaultVariant    string              `json:"default_variant,omitempty"`
	Variants          []bucketing.Variant `json:"variants,omitempty"`
	CreatedAt         time.Time           `json:"created_at,omitzero"`
	UpdatedAt         time.Time           `json:"updated_at,omitzero"`
}

// Validate checks the flag snapshot against its structural invariants.
func (f *FlagConfig) Validate() error {
	if f.Key == "" {
		return errors.Join(ErrInvalidConfig, errors.New("flag key cannot be empty"))
	}
	if f.RolloutPercentage < 0 || f.RolloutPercentage > 100 {
		return errors.Join(ErrInvalidConfig,
			fmt.Errorf("rollout percentage %d is outside [0,100]", f.RolloutPercentage))
	}
	if err := rules.ValidateAll(f.TargetingRules); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if len(f.Variants) > 0 {
		if err := bucketing.ValidateVariants(f.Variants); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}
	return nil
}

// ExperimentStatus is the lifecycle state of an experiment. Only active
// experiments participate in assignment.
type ExperimentStatus string

const (
	StatusDraft     ExperimentStatus = "draft"
	StatusActive    ExperimentStatus = "active"
	StatusPaused    ExperimentStatus = "paused"
	StatusCompleted ExperimentStatus = "completed"
)

// ExperimentConfig is an immutable snapshot of an A/B or multivariate test.
type ExperimentConfig struct {
	ID                string              `json:"id"`
	Key               string              `json:"key"`
	Status            ExperimentStatus    `json:"status"`
	Variants          []bucketing.Variant `json:"variants"`
	TrafficAllocation float64             `json:"traffic_allocation"`
	TargetingRules    []rules.Rule        `json:"targeting_rules,omitempty"`
	Salt              string              `json:"salt,omitempty"`
	CreatedAt         time.Time           `json:"created_at,omitzero"`
	UpdatedAt         time.Time           `json:"updated_at,omitzero"`
}

// Validate checks the experiment snapshot against its structural invariants.
func (e *ExperimentConfig) Validate() error {
	if e.Key == "" {
		return errors.Join(ErrInvalidConfig, errors.New("experiment key cannot be empty"))
	}
	if len(e.Variants) < 2 {
		return errors.Join(ErrInvalidConfig,
			fmt.Errorf("experiment %q needs at least 2 variants, has %d", e.Key, len(e.Variants)))
	}
	if err := bucketing.ValidateVariants(e.Variants); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if e.TrafficAllocation < 0 || e.TrafficAllocation > 1 {
		return errors.Join(ErrInvalidConfig,
			fmt.Errorf("traffic allocation %v is outside [0,1]", e.TrafficAllocation))
	}
	if err := rules.ValidateAll(e.TargetingRules); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	switch e.Status {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted:
	default:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown experiment status %q", e.Status))
	}
	return nil
}

// Assignment records which variant a user received for an experiment. Created
// once, never mutated; uniqueness over (user_id, experiment_id) is enforced at
// the store boundary with a conditional write.
type Assignment struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	ExperimentID  string         `json:"experiment_id"`
	ExperimentKey string         `json:"experiment_key"`
	Variant       string         `json:"variant"`
	Context       map[string]any `json:"context,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
