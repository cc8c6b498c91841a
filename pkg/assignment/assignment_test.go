package assignment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rolloutkit/pkg/assignment"
	"github.com/dmitrymomot/rolloutkit/pkg/bucketing"
	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/rules"
)

func activeExperiment() *flags.ExperimentConfig {
	return &flags.ExperimentConfig{
		ID:     "exp-1",
		Key:    "pricing-test",
		Status: flags.StatusActive,
		Variants: []bucketing.Variant{
			{Key: "control", Allocation: 0.5},
			{Key: "treatment", Allocation: 0.5},
		},
		TrafficAllocation: 1.0,
	}
}

func newService(t *testing.T, store assignment.Store, opts ...assignment.Option) *assignment.Service {
	t.Helper()
	svc, err := assignment.NewService(store, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	t.Parallel()

	_, err := assignment.NewService(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assignment.ErrNilStore)
}

func TestGetOrCreateValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, assignment.NewMemoryStore())

	t.Run("EmptyUserID", func(t *testing.T) {
		t.Parallel()
		_, err := svc.GetOrCreate(ctx, "", activeExperiment(), nil)
		assert.ErrorIs(t, err, assignment.ErrEmptyUserID)
	})

	t.Run("NilExperiment", func(t *testing.T) {
		t.Parallel()
		_, err := svc.GetOrCreate(ctx, "user-1", nil, nil)
		assert.ErrorIs(t, err, assignment.ErrInvalidExperiment)
	})

	t.Run("InactiveStatus", func(t *testing.T) {
		t.Parallel()
		for _, status := range []flags.ExperimentStatus{flags.StatusDraft, flags.StatusPaused, flags.StatusCompleted} {
			exp := activeExperiment()
			exp.Status = status
			_, err := svc.GetOrCreate(ctx, "user-1", exp, nil)
			assert.ErrorIs(t, err, assignment.ErrExperimentNotActive, "status %s", status)
		}
	})

	t.Run("TooFewVariants", func(t *testing.T) {
		t.Parallel()
		exp := activeExperiment()
		exp.Variants = []bucketing.Variant{{Key: "only", Allocation: 1.0}}
		_, err := svc.GetOrCreate(ctx, "user-1", exp, nil)
		assert.ErrorIs(t, err, assignment.ErrInvalidExperiment)
	})
}

func TestGetOrCreateStickiness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := assignment.NewMemoryStore()
	svc := newService(t, store)
	exp := activeExperiment()

	first, err := svc.GetOrCreate(ctx, "user-1", exp, nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Later calls return the persisted record even after config changes.
	changed := activeExperiment()
	changed.TrafficAllocation = 0.0
	changed.TargetingRules = []rules.Rule{
		{Attribute: "plan", Operator: rules.OperatorEquals, Value: "nonexistent"},
	}

	again, err := svc.GetOrCreate(ctx, "user-1", changed, nil)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Variant, again.Variant)

	assert.Equal(t, 1, store.Len())
}

func TestGetOrCreateExclusion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("TargetingMismatch", func(t *testing.T) {
		t.Parallel()
		store := assignment.NewMemoryStore()
		svc := newService(t, store)

		exp := activeExperiment()
		exp.TargetingRules = []rules.Rule{
			{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"},
		}

		a, err := svc.GetOrCreate(ctx, "user-1", exp, map[string]any{"plan": "free"})
		require.NoError(t, err)
		assert.Nil(t, a)
		assert.Zero(t, store.Len(), "excluded users must leave no record")

		// Once targeting matches, the user gets assigned.
		a, err = svc.GetOrCreate(ctx, "user-1", exp, map[string]any{"plan": "pro"})
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("OutsideTrafficSlice", func(t *testing.T) {
		t.Parallel()
		store := assignment.NewMemoryStore()
		svc := newService(t, store)

		exp := activeExperiment()
		exp.TrafficAllocation = 0.0

		a, err := svc.GetOrCreate(ctx, "user-1", exp, nil)
		require.NoError(t, err)
		assert.Nil(t, a)
		assert.Zero(t, store.Len())
	})
}

func TestGetOrCreateConcurrentRace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := assignment.NewMemoryStore()
	svc := newService(t, store)
	exp := activeExperiment()

	const callers = 32
	results := make([]*flags.Assignment, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a, err := svc.GetOrCreate(ctx, "user-race", exp, nil)
			assert.NoError(t, err)
			results[n] = a
		}(i)
	}
	wg.Wait()

	require.NotNil(t, results[0])
	for _, a := range results {
		require.NotNil(t, a)
		assert.Equal(t, results[0].ID, a.ID, "all callers must observe the winner's record")
		assert.Equal(t, results[0].Variant, a.Variant)
	}
	assert.Equal(t, 1, store.Len(), "exactly one assignment stored")
}

// flakyStore fails PutIfAbsent a configured number of times before delegating.
type flakyStore struct {
	assignment.Store
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) PutIfAbsent(ctx context.Context, a *flags.Assignment) (bool, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return false, errors.New("store throttled")
	}
	s.mu.Unlock()
	return s.Store.PutIfAbsent(ctx, a)
}

func TestGetOrCreateTransientWriteFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("RecoversAfterTransientFailures", func(t *testing.T) {
		t.Parallel()
		store := &flakyStore{Store: assignment.NewMemoryStore(), failures: 2}
		svc := newService(t, store,
			assignment.WithRetryAttempts(3),
			assignment.WithRetryInterval(0))

		a, err := svc.GetOrCreate(ctx, "user-1", activeExperiment(), nil)
		require.NoError(t, err)
		require.NotNil(t, a)
	})

	t.Run("ExhaustedRetriesReturnUnpersisted", func(t *testing.T) {
		t.Parallel()
		store := &flakyStore{Store: assignment.NewMemoryStore(), failures: 10}
		svc := newService(t, store,
			assignment.WithRetryAttempts(2),
			assignment.WithRetryInterval(0))

		a, err := svc.GetOrCreate(ctx, "user-1", activeExperiment(), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, assignment.ErrNotPersisted)
		require.NotNil(t, a, "the computed variant is still served")
		assert.NotEmpty(t, a.Variant)
	})
}

func TestAssignmentDeterministicVariant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	exp := activeExperiment()

	// Two independent stores simulate two processes: the computed variant
	// must match because the hash is deterministic.
	svcA := newService(t, assignment.NewMemoryStore())
	svcB := newService(t, assignment.NewMemoryStore())

	for i := 0; i < 50; i++ {
		userID := fmt.Sprintf("user-%d", i)
		a, err := svcA.GetOrCreate(ctx, userID, exp, nil)
		require.NoError(t, err)
		b, err := svcB.GetOrCreate(ctx, userID, exp, nil)
		require.NoError(t, err)

		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, a.Variant, b.Variant)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := assignment.NewMemoryStore()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "nobody", "nothing")
		assert.ErrorIs(t, err, assignment.ErrAssignmentNotFound)
	})

	t.Run("PutIfAbsentSemantics", func(t *testing.T) {
		a := &flags.Assignment{ID: "a1", UserID: "u1", ExperimentID: "e1", Variant: "control"}

		won, err := store.PutIfAbsent(ctx, a)
		require.NoError(t, err)
		assert.True(t, won)

		duplicate := &flags.Assignment{ID: "a2", UserID: "u1", ExperimentID: "e1", Variant: "treatment"}
		won, err = store.PutIfAbsent(ctx, duplicate)
		require.NoError(t, err)
		assert.False(t, won)

		stored, err := store.Get(ctx, "u1", "e1")
		require.NoError(t, err)
		assert.Equal(t, "a1", stored.ID, "the first write must never be overwritten")
	})
}
