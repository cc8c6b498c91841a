package rolloutkit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/rolloutkit/pkg/assignment"
	"github.com/dmitrymomot/rolloutkit/pkg/evaluator"
	"github.com/dmitrymomot/rolloutkit/pkg/events"
	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/logger"
	"github.com/dmitrymomot/rolloutkit/pkg/safety"
)

// Dependencies are the storage and telemetry backends the control plane is
// wired to. ConfigStore and AssignmentStore are required. FlagStore, Metrics,
// and Audit enable the safety monitor and rollback operations; leaving them
// nil disables that part of the service. EventSink is optional: when nil, no
// evaluation or assignment events are emitted.
type Dependencies struct {
	ConfigStore     evaluator.ConfigStore
	AssignmentStore assignment.Store
	FlagStore       safety.FlagStore
	Metrics         safety.MetricsQuery
	Audit           safety.AuditSink
	EventSink       events.Sink
}

// Service is the control plane facade. It owns the evaluation engine, the
// sticky assignment service, the safety monitor, and the event pipeline, and
// exposes the public operations on top of them.
type Service struct {
	eval        *evaluator.Evaluator
	assignments *assignment.Service
	checker     *safety.Checker
	executor    *safety.Executor
	monitor     *safety.Monitor
	emitter     *events.Emitter
	flagStore   safety.FlagStore

	defaultPolicy *flags.SafetyConfig
	logger        *slog.Logger

	mu      sync.Mutex
	started bool
}

// Option configures Service creation.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger        *slog.Logger
	defaultPolicy *flags.SafetyConfig
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDefaultSafetyPolicy sets the policy applied to flags that have no
// safety configuration of their own. Without it such flags are not monitored.
func WithDefaultSafetyPolicy(policy flags.SafetyConfig) Option {
	return func(o *serviceOptions) {
		o.defaultPolicy = &policy
	}
}

// New wires the control plane from cfg and deps.
func New(cfg Config, deps Dependencies, opts ...Option) (*Service, error) {
	if deps.ConfigStore == nil {
		return nil, ErrNilConfigStore
	}
	if deps.AssignmentStore == nil {
		return nil, ErrNilAssignmentStore
	}

	o := &serviceOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.New(logger.WithAttr(slog.String("service", cfg.ServiceName)))
	}
	log := o.logger.With(logger.Component("rolloutkit"))

	var emitter *events.Emitter
	if deps.EventSink != nil {
		var err error
		emitter, err = events.NewEmitter(deps.EventSink,
			events.WithBufferSize(cfg.EventBufferSize),
			events.WithLogger(log))
		if err != nil {
			return nil, err
		}
	}

	evalOpts := []evaluator.Option{
		evaluator.WithCacheTTL(cfg.CacheTTL),
		evaluator.WithFetchTimeout(cfg.FetchTimeout),
		evaluator.WithLogger(log),
	}
	if emitter != nil {
		evalOpts = append(evalOpts, evaluator.WithEmitter(emitter))
	}
	eval, err := evaluator.New(deps.ConfigStore, evalOpts...)
	if err != nil {
		return nil, err
	}

	assignOpts := []assignment.Option{
		assignment.WithRetryAttempts(cfg.AssignmentRetryAttempts),
		assignment.WithRetryInterval(cfg.AssignmentRetryInterval),
		assignment.WithLogger(log),
	}
	if emitter != nil {
		assignOpts = append(assignOpts, assignment.WithEmitter(emitter))
	}
	assignments, err := assignment.NewService(deps.AssignmentStore, assignOpts...)
	if err != nil {
		eval.Close()
		return nil, err
	}

	s := &Service{
		eval:          eval,
		assignments:   assignments,
		emitter:       emitter,
		flagStore:     deps.FlagStore,
		defaultPolicy: o.defaultPolicy,
		logger:        log,
	}

	if deps.FlagStore != nil && deps.Metrics != nil && deps.Audit != nil {
		checker, err := safety.NewChecker(deps.Metrics,
			safety.WithWindow(cfg.MetricsWindow),
			safety.WithCheckerLogger(log))
		if err != nil {
			eval.Close()
			return nil, err
		}
		executor, err := safety.NewExecutor(deps.FlagStore, deps.Audit,
			safety.WithDefaultRollbackPercentage(cfg.RollbackPercentage),
			safety.WithExecutorLogger(log))
		if err != nil {
			eval.Close()
			return nil, err
		}

		monitorOpts := []safety.MonitorOption{
			safety.WithCheckInterval(cfg.SafetyCheckInterval),
			safety.WithAutomaticRollbacks(cfg.AutomaticRollbacks),
			safety.WithMonitorLogger(log),
		}
		if o.defaultPolicy != nil {
			monitorOpts = append(monitorOpts, safety.WithDefaultSafetyConfig(*o.defaultPolicy))
		}
		monitor, err := safety.NewMonitor(deps.FlagStore, checker, executor, monitorOpts...)
		if err != nil {
			eval.Close()
			return nil, err
		}

		s.checker = checker
		s.executor = executor
		s.monitor = monitor
	}

	return s, nil
}

// Start launches the background components: the event delivery worker and the
// safety monitoring loop. It is a no-op for components that were not wired.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	if s.emitter != nil {
		if err := s.emitter.Start(ctx); err != nil {
			return err
		}
	}
	if s.monitor != nil {
		if err := s.monitor.Start(ctx); err != nil {
			if s.emitter != nil {
				_ = s.emitter.Stop()
			}
			return err
		}
	}

	s.started = true
	s.logger.InfoContext(ctx, "control plane started")
	return nil
}

// Stop shuts down the background components and releases cache resources.
// Buffered events are drained before the emitter stops.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}

	var errs []error
	if s.monitor != nil {
		if err := s.monitor.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.emitter != nil {
		if err := s.emitter.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	s.eval.Close()

	s.started = false
	s.logger.Info("control plane stopped")
	return errors.Join(errs...)
}

// Evaluate returns the flag decision for one user. Configuration problems
// degrade to a disabled result with an explanatory reason; the only error is
// an empty user id.
func (s *Service) Evaluate(ctx context.Context, userID, flagKey string, evalCtx map[string]any) (evaluator.Result, error) {
	return s.eval.Evaluate(ctx, userID, flagKey, evalCtx)
}

// BatchEvaluate evaluates several flags for one user in a single call.
// Individual flag failures degrade per key and never abort the batch.
func (s *Service) BatchEvaluate(ctx context.Context, userID string, flagKeys []string, evalCtx map[string]any) (map[string]evaluator.Result, error) {
	return s.eval.BatchEvaluate(ctx, userID, flagKeys, evalCtx)
}

// GetOrCreateAssignment returns the user's sticky assignment for the
// experiment, creating one when the user qualifies and has none. A nil
// assignment with a nil error means the user is excluded by targeting or
// traffic allocation.
func (s *Service) GetOrCreateAssignment(ctx context.Context, userID, experimentKey string, evalCtx map[string]any) (*flags.Assignment, error) {
	exp, err := s.eval.Experiment(ctx, experimentKey)
	if err != nil {
		return nil, err
	}
	return s.assignments.GetOrCreate(ctx, userID, exp, evalCtx)
}

// CheckFlagSafety evaluates the flag's safety metrics on demand, outside the
// periodic sweep. Flags without an applicable policy report healthy.
func (s *Service) CheckFlagSafety(ctx context.Context, flagID string) (safety.FlagHealth, error) {
	if s.checker == nil {
		return safety.FlagHealth{}, ErrSafetyNotConfigured
	}

	flag, err := s.flagStore.GetFlag(ctx, flagID)
	if err != nil {
		return safety.FlagHealth{}, err
	}

	cfg, err := s.flagStore.GetSafetyConfig(ctx, flagID)
	if errors.Is(err, safety.ErrSafetyConfigNotFound) {
		if s.defaultPolicy == nil {
			return safety.FlagHealth{
				FlagID:    flag.ID,
				FlagKey:   flag.Key,
				Healthy:   true,
				CheckedAt: time.Now().UTC(),
			}, nil
		}
		policy := *s.defaultPolicy
		cfg = &policy
	} else if err != nil {
		return safety.FlagHealth{}, err
	}

	if !cfg.Enabled || len(cfg.Metrics) == 0 {
		return safety.FlagHealth{
			FlagID:    flag.ID,
			FlagKey:   flag.Key,
			Healthy:   true,
			CheckedAt: time.Now().UTC(),
		}, nil
	}

	return s.checker.CheckFlag(ctx, *flag, cfg), nil
}

// RollbackFlag reduces the flag's rollout percentage as a manual operator
// action and records it in the audit trail. The configured rollback
// percentage is used as the target.
func (s *Service) RollbackFlag(ctx context.Context, flagID, reason, executedBy string) (safety.RollbackResult, error) {
	if s.executor == nil {
		return safety.RollbackResult{}, ErrSafetyNotConfigured
	}
	return s.executor.Rollback(ctx, safety.RollbackRequest{
		FlagID:           flagID,
		Trigger:          flags.TriggerManual,
		Reason:           reason,
		TargetPercentage: -1,
		ExecutedBy:       executedBy,
	})
}

// Sweep runs one safety check cycle immediately, independent of the ticker.
func (s *Service) Sweep(ctx context.Context) error {
	if s.monitor == nil {
		return ErrSafetyNotConfigured
	}
	s.monitor.Sweep(ctx)
	return nil
}

// DroppedEvents reports how many events were discarded due to backpressure.
func (s *Service) DroppedEvents() int64 {
	if s.emitter == nil {
		return 0
	}
	return s.emitter.DroppedCount()
}
