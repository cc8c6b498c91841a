package evaluator_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rolloutkit/pkg/bucketing"
	"github.com/dmitrymomot/rolloutkit/pkg/evaluator"
	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/rules"
)

// fakeStore is an in-memory ConfigStore with call counting and fault
// injection.
type fakeStore struct {
	flags       map[string]*flags.FlagConfig
	experiments map[string]*flags.ExperimentConfig
	flagCalls   atomic.Int64
	failWith    error
}

func (s *fakeStore) GetFlag(ctx context.Context, key string) (*flags.FlagConfig, error) {
	s.flagCalls.Add(1)
	if s.failWith != nil {
		return nil, s.failWith
	}
	cfg, ok := s.flags[key]
	if !ok {
		return nil, evaluator.ErrFlagNotFound
	}
	return cfg, nil
}

func (s *fakeStore) GetExperiment(ctx context.Context, key string) (*flags.ExperimentConfig, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	cfg, ok := s.experiments[key]
	if !ok {
		return nil, evaluator.ErrExperimentNotFound
	}
	return cfg, nil
}

func newEvaluator(t *testing.T, store evaluator.ConfigStore, opts ...evaluator.Option) *evaluator.Evaluator {
	t.Helper()
	eval, err := evaluator.New(store, opts...)
	require.NoError(t, err)
	t.Cleanup(eval.Close)
	return eval
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := evaluator.New(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, evaluator.ErrNilStore)
}

func TestEvaluateValidation(t *testing.T) {
	t.Parallel()

	eval := newEvaluator(t, &fakeStore{})

	_, err := eval.Evaluate(context.Background(), "", "any", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, evaluator.ErrEmptyUserID)
}

func TestEvaluateStateMachine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("DisabledFlagShortCircuits", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"dark-mode": {
				ID:      "f1",
				Key:     "dark-mode",
				Enabled: false,
				// Full rollout and permissive rules must not matter.
				RolloutPercentage: 100,
			},
		}}
		eval := newEvaluator(t, store)

		result, err := eval.Evaluate(ctx, "user-1", "dark-mode", nil)
		require.NoError(t, err)
		assert.False(t, result.Enabled)
		assert.Equal(t, evaluator.ReasonFlagDisabled, result.Reason)
	})

	t.Run("TargetingBeforeRollout", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"pro-only": {
				ID:                "f2",
				Key:               "pro-only",
				Enabled:           true,
				RolloutPercentage: 100,
				TargetingRules: []rules.Rule{
					{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"},
				},
			},
		}}
		eval := newEvaluator(t, store)

		// rollout=100 would include everyone, but targeting must win.
		result, err := eval.Evaluate(ctx, "user-1", "pro-only", map[string]any{"plan": "free"})
		require.NoError(t, err)
		assert.False(t, result.Enabled)
		assert.Equal(t, evaluator.ReasonTargetingRulesNotMet, result.Reason)

		result, err = eval.Evaluate(ctx, "user-1", "pro-only", map[string]any{"plan": "pro"})
		require.NoError(t, err)
		assert.True(t, result.Enabled)
		assert.Equal(t, evaluator.ReasonEnabled, result.Reason)
	})

	t.Run("MissingContextAttributeFailsClosed", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"pro-only": {
				ID:                "f2",
				Key:               "pro-only",
				Enabled:           true,
				RolloutPercentage: 100,
				TargetingRules: []rules.Rule{
					{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"},
				},
			},
		}}
		eval := newEvaluator(t, store)

		result, err := eval.Evaluate(ctx, "user-1", "pro-only", nil)
		require.NoError(t, err)
		assert.Equal(t, evaluator.ReasonTargetingRulesNotMet, result.Reason)
	})

	t.Run("ZeroRolloutExcludesEveryone", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"checkout-v2": {ID: "f3", Key: "checkout-v2", Enabled: true, RolloutPercentage: 0},
		}}
		eval := newEvaluator(t, store)

		for i := 0; i < 100; i++ {
			result, err := eval.Evaluate(ctx, fmt.Sprintf("user-%d", i), "checkout-v2", nil)
			require.NoError(t, err)
			assert.False(t, result.Enabled)
			assert.Equal(t, evaluator.ReasonNotInRollout, result.Reason)
		}
	})

	t.Run("FullRolloutIncludesEveryone", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"checkout-v2": {ID: "f3", Key: "checkout-v2", Enabled: true, RolloutPercentage: 100},
		}}
		eval := newEvaluator(t, store)

		for i := 0; i < 100; i++ {
			result, err := eval.Evaluate(ctx, fmt.Sprintf("user-%d", i), "checkout-v2", nil)
			require.NoError(t, err)
			assert.True(t, result.Enabled)
		}
	})

	t.Run("VariantResolution", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"themed": {
				ID:                "f4",
				Key:               "themed",
				Enabled:           true,
				RolloutPercentage: 100,
				Variants: []bucketing.Variant{
					{Key: "blue", Allocation: 0.5},
					{Key: "green", Allocation: 0.5},
				},
			},
		}}
		eval := newEvaluator(t, store)

		result, err := eval.Evaluate(ctx, "user-1", "themed", nil)
		require.NoError(t, err)
		assert.True(t, result.Enabled)
		assert.Contains(t, []string{"blue", "green"}, result.Variant)

		// Deterministic across repeated calls.
		for i := 0; i < 10; i++ {
			again, err := eval.Evaluate(ctx, "user-1", "themed", nil)
			require.NoError(t, err)
			assert.Equal(t, result.Variant, again.Variant)
		}
	})

	t.Run("NoVariantsMeansEmptyVariant", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"plain": {ID: "f5", Key: "plain", Enabled: true, RolloutPercentage: 100},
		}}
		eval := newEvaluator(t, store)

		result, err := eval.Evaluate(ctx, "user-1", "plain", nil)
		require.NoError(t, err)
		assert.True(t, result.Enabled)
		assert.Empty(t, result.Variant)
	})

	t.Run("UnknownFlag", func(t *testing.T) {
		t.Parallel()
		eval := newEvaluator(t, &fakeStore{})

		result, err := eval.Evaluate(ctx, "user-1", "nope", nil)
		require.NoError(t, err, "unknown flags are a result, not an error")
		assert.False(t, result.Enabled)
		assert.Equal(t, evaluator.ReasonFlagNotFound, result.Reason)
	})

	t.Run("StoreFailureFailsSafe", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{failWith: errors.New("connection refused")}
		eval := newEvaluator(t, store)

		result, err := eval.Evaluate(ctx, "user-1", "any", nil)
		require.NoError(t, err)
		assert.False(t, result.Enabled)
		assert.Equal(t, evaluator.ReasonConfigUnavailable, result.Reason)
	})
}

func TestRolloutDistribution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	evaluateAll := func(t *testing.T, percentage int) int {
		t.Helper()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"checkout-v2": {ID: "f1", Key: "checkout-v2", Enabled: true, RolloutPercentage: percentage},
		}}
		eval := newEvaluator(t, store)

		var enabled int
		for i := 0; i < 1000; i++ {
			result, err := eval.Evaluate(ctx, fmt.Sprintf("synthetic-user-%d", i), "checkout-v2", nil)
			require.NoError(t, err)
			if result.Enabled {
				enabled++
			}
		}
		return enabled
	}

	t.Run("HalfRollout", func(t *testing.T) {
		t.Parallel()
		enabled := evaluateAll(t, 50)
		assert.GreaterOrEqual(t, enabled, 450)
		assert.LessOrEqual(t, enabled, 550)
	})

	t.Run("ZeroRollout", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0, evaluateAll(t, 0))
	})

	t.Run("FullRollout", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1000, evaluateAll(t, 100))
	})

	// Larger population, tighter band: at 10k users the inclusion rate must
	// stay within two percentage points of the configured rollout.
	t.Run("InclusionRateAtScale", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{flags: map[string]*flags.FlagConfig{
			"checkout-v2": {ID: "f1", Key: "checkout-v2", Enabled: true, RolloutPercentage: 50},
		}}
		eval := newEvaluator(t, store)

		const users = 10000
		var enabled int
		for i := 0; i < users; i++ {
			result, err := eval.Evaluate(ctx, fmt.Sprintf("synthetic-user-%d", i), "checkout-v2", nil)
			require.NoError(t, err)
			if result.Enabled {
				enabled++
			}
		}

		rate := float64(enabled) / users
		assert.InDelta(t, 0.5, rate, 0.02)
	})
}

func TestBatchEvaluate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &fakeStore{flags: map[string]*flags.FlagConfig{
		"on":  {ID: "f1", Key: "on", Enabled: true, RolloutPercentage: 100},
		"off": {ID: "f2", Key: "off", Enabled: false},
	}}
	eval := newEvaluator(t, store)

	t.Run("UnknownKeyDoesNotAbortBatch", func(t *testing.T) {
		t.Parallel()
		results, err := eval.BatchEvaluate(ctx, "user-1", []string{"on", "missing", "off"}, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.True(t, results["on"].Enabled)
		assert.Equal(t, evaluator.ReasonEnabled, results["on"].Reason)

		assert.False(t, results["missing"].Enabled)
		assert.Equal(t, evaluator.ReasonFlagNotFound, results["missing"].Reason)

		assert.False(t, results["off"].Enabled)
		assert.Equal(t, evaluator.ReasonFlagDisabled, results["off"].Reason)
	})

	t.Run("EmptyUserID", func(t *testing.T) {
		t.Parallel()
		_, err := eval.BatchEvaluate(ctx, "", []string{"on"}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, evaluator.ErrEmptyUserID)
	})
}

func TestConfigCaching(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &fakeStore{flags: map[string]*flags.FlagConfig{
		"cached": {ID: "f1", Key: "cached", Enabled: true, RolloutPercentage: 100},
	}}
	eval := newEvaluator(t, store)

	for i := 0; i < 10; i++ {
		_, err := eval.Evaluate(ctx, fmt.Sprintf("user-%d", i), "cached", nil)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), store.flagCalls.Load(), "config must be fetched once within the TTL window")
	assert.InDelta(t, 0.9, eval.CacheStats().HitRate(), 0.0001)
}

func TestExperiment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &fakeStore{experiments: map[string]*flags.ExperimentConfig{
		"pricing": {
			ID:     "e1",
			Key:    "pricing",
			Status: flags.StatusActive,
			Variants: []bucketing.Variant{
				{Key: "control", Allocation: 0.5},
				{Key: "treatment", Allocation: 0.5},
			},
			TrafficAllocation: 1.0,
		},
	}}
	eval := newEvaluator(t, store)

	t.Run("Found", func(t *testing.T) {
		t.Parallel()
		cfg, err := eval.Experiment(ctx, "pricing")
		require.NoError(t, err)
		assert.Equal(t, "pricing", cfg.Key)
	})

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()
		_, err := eval.Experiment(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, evaluator.ErrExperimentNotFound)
	})
}
