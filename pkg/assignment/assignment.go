package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/rolloutkit/pkg/bucketing"
	"github.com/dmitrymomot/rolloutkit/pkg/events"
	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/logger"
	"github.com/dmitrymomot/rolloutkit/pkg/rules"
)

// Store persists sticky experiment assignments. PutIfAbsent must be a
// conditional create: when two concurrent calls race on the same
// (user, experiment) pair, exactly one write wins and the other returns
// false without error.
type Store interface {
	// Get returns the existing assignment or ErrAssignmentNotFound.
	Get(ctx context.Context, userID, experimentID string) (*flags.Assignment, error)

	// PutIfAbsent stores the assignment unless one already exists for the
	// same (user, experiment) pair. The boolean reports whether the write
	// won; false means another assignment is already in place.
	PutIfAbsent(ctx context.Context, a *flags.Assignment) (bool, error)
}

// Service produces sticky experiment assignments: the first call for a
// (user, experiment) pair computes and persists a variant, every later call
// returns the persisted record unchanged even if the experiment's targeting
// or allocation changed in the meantime.
type Service struct {
	store         Store
	emitter       *events.Emitter
	retryAttempts int
	retryInterval time.Duration
	logger        *slog.Logger
}

// Option configures service creation.
type Option func(*options)

type options struct {
	emitter       *events.Emitter
	retryAttempts int
	retryInterval time.Duration
	logger        *slog.Logger
}

// WithRetryAttempts bounds how many times a transiently failing conditional
// write is retried before the call gives up persisting.
func WithRetryAttempts(attempts int) Option {
	return func(o *options) {
		if attempts > 0 {
			o.retryAttempts = attempts
		}
	}
}

// WithRetryInterval sets the pause between write retries.
func WithRetryInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval >= 0 {
			o.retryInterval = interval
		}
	}
}

// WithEmitter enables assignment-event emission.
func WithEmitter(emitter *events.Emitter) Option {
	return func(o *options) {
		o.emitter = emitter
	}
}

// WithLogger sets the logger for degraded-path reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewService creates an assignment service over store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	o := &options{
		retryAttempts: 3,
		retryInterval: 100 * time.Millisecond,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Service{
		store:         store,
		emitter:       o.emitter,
		retryAttempts: o.retryAttempts,
		retryInterval: o.retryInterval,
		logger:        o.logger,
	}, nil
}

// GetOrCreate returns the user's sticky assignment for the experiment,
// creating it on first exposure. A nil result with a nil error means the user
// is excluded (targeting mismatch or outside the traffic slice); nothing is
// persisted for excluded users, so they are reconsidered on later calls.
func (s *Service) GetOrCreate(ctx context.Context, userID string, exp *flags.ExperimentConfig, evalCtx map[string]any) (*flags.Assignment, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if exp == nil {
		return nil, errors.Join(ErrInvalidExperiment, errors.New("experiment config cannot be nil"))
	}
	if err := exp.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidExperiment, err)
	}
	if exp.Status != flags.StatusActive {
		return nil, errors.Join(ErrExperimentNotActive,
			fmt.Errorf("experiment %q has status %q", exp.Key, exp.Status))
	}

	existing, err := s.store.Get(ctx, userID, exp.ID)
	if err == nil {
		// Sticky for the lifetime of the experiment: targeting rules are
		// deliberately not re-validated for already-assigned users.
		return existing, nil
	}
	if !errors.Is(err, ErrAssignmentNotFound) {
		// A transient read failure falls through to the compute-and-create
		// path; the conditional write still guards uniqueness.
		s.logger.Warn("assignment lookup failed, continuing with conditional create",
			logger.UserID(userID), logger.ExperimentKey(exp.Key), logger.Error(err))
	}

	if len(exp.TargetingRules) > 0 && !rules.MatchAll(exp.TargetingRules, evalCtx) {
		return nil, nil
	}

	variant, included, err := bucketing.AssignVariant(userID, exp.Key, exp.Variants, exp.TrafficAllocation, exp.Salt)
	if err != nil {
		return nil, err
	}
	if !included {
		return nil, nil
	}

	created := &flags.Assignment{
		ID:            uuid.New().String(),
		UserID:        userID,
		ExperimentID:  exp.ID,
		ExperimentKey: exp.Key,
		Variant:       variant,
		Context:       evalCtx,
		CreatedAt:     time.Now().UTC(),
	}

	assignment, err := s.persist(ctx, created)
	if err != nil {
		return assignment, err
	}

	s.emit(assignment)
	return assignment, nil
}

// persist attempts the conditional create with bounded retries. Losing the
// race to a concurrent caller is not a failure: the winner's record is read
// back and returned. Exhausting retries returns the computed assignment
// together with ErrNotPersisted so the caller can still serve the variant;
// the hash is deterministic, so the next call recomputes the same one.
func (s *Service) persist(ctx context.Context, a *flags.Assignment) (*flags.Assignment, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		won, err := s.store.PutIfAbsent(ctx, a)
		if err != nil {
			lastErr = err
			s.logger.Warn("assignment write failed",
				logger.UserID(a.UserID),
				logger.ExperimentKey(a.ExperimentKey),
				logger.RetryCount(attempt+1),
				logger.Error(err))

			select {
			case <-ctx.Done():
				return a, errors.Join(ErrNotPersisted, ctx.Err())
			case <-time.After(s.retryInterval):
			}
			continue
		}

		if won {
			return a, nil
		}

		winner, err := s.store.Get(ctx, a.UserID, a.ExperimentID)
		if err == nil {
			return winner, nil
		}
		lastErr = err
	}

	return a, errors.Join(ErrNotPersisted, lastErr)
}

func (s *Service) emit(a *flags.Assignment) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(events.Event{
		Type:          events.TypeAssignment,
		ExperimentKey: a.ExperimentKey,
		UserID:        a.UserID,
		Enabled:       true,
		Variant:       a.Variant,
		Context:       a.Context,
	})
}
