package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/logger"
)

// DefaultCheckInterval is how often the monitor sweeps active flags unless
// configured otherwise.
const DefaultCheckInterval = 5 * time.Minute

// Monitor is the timer-driven safety loop: each tick it lists active rolled
// out flags, checks their health, and hands unhealthy ones to the executor.
// One monitor runs per process; ticks are single-flight, so a sweep that
// outlives the interval delays the next sweep instead of overlapping it.
type Monitor struct {
	store        FlagStore
	checker      *Checker
	executor     *Executor
	interval     time.Duration
	autoRollback bool
	defaults     flags.SafetyConfig
	logger       *slog.Logger

	inFlight atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// MonitorOption configures monitor creation.
type MonitorOption func(*Monitor)

// WithCheckInterval overrides the default 5 minute sweep interval.
func WithCheckInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithAutomaticRollbacks enables or disables acting on unhealthy flags.
// Disabled, the monitor still checks and logs but never mutates rollout
// state.
func WithAutomaticRollbacks(enabled bool) MonitorOption {
	return func(m *Monitor) {
		m.autoRollback = enabled
	}
}

// WithDefaultSafetyConfig sets the policy applied to flags that carry no
// safety config of their own.
func WithDefaultSafetyConfig(cfg flags.SafetyConfig) MonitorOption {
	return func(m *Monitor) {
		m.defaults = cfg
	}
}

// WithMonitorLogger sets the monitor's logger.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMonitor creates the safety loop. Call Start to begin sweeping.
func NewMonitor(store FlagStore, checker *Checker, executor *Executor, opts ...MonitorOption) (*Monitor, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if checker == nil {
		return nil, errors.New("safety: checker cannot be nil")
	}
	if executor == nil {
		return nil, errors.New("safety: executor cannot be nil")
	}

	m := &Monitor{
		store:    store,
		checker:  checker,
		executor: executor,
		interval: DefaultCheckInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Start launches the background sweep loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return fmt.Errorf("safety: monitor already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(loopCtx)

	m.logger.Info("safety monitor started",
		slog.Duration("interval", m.interval),
		slog.Bool("automatic_rollbacks", m.autoRollback))

	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return fmt.Errorf("safety: monitor not started")
	}
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done

	m.logger.Info("safety monitor stopped")
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one safety pass over all active flags. It is exported so an
// operator action or test can force a check between ticks; the single-flight
// guard makes a concurrent sweep a logged no-op rather than a double run.
// Per-flag failures are logged and never abort the rest of the sweep.
func (m *Monitor) Sweep(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.logger.Warn("previous safety sweep still running, skipping")
		return
	}
	defer m.inFlight.Store(false)

	active, err := m.store.ListActiveFlags(ctx)
	if err != nil {
		m.logger.Error("failed to list active flags", logger.Error(err))
		return
	}

	for _, flag := range active {
		if ctx.Err() != nil {
			return
		}
		m.checkOne(ctx, flag)
	}
}

func (m *Monitor) checkOne(ctx context.Context, flag flags.FlagConfig) {
	cfg, err := m.store.GetSafetyConfig(ctx, flag.ID)
	if errors.Is(err, ErrSafetyConfigNotFound) {
		defaults := m.defaults
		cfg = &defaults
	} else if err != nil {
		m.logger.Error("failed to load safety config",
			logger.FlagKey(flag.Key), logger.Error(err))
		return
	}

	if !cfg.Enabled || len(cfg.Metrics) == 0 {
		return
	}

	health := m.checker.CheckFlag(ctx, flag, cfg)
	if health.Healthy {
		return
	}

	unhealthy := health.FirstUnhealthy()
	reason := fmt.Sprintf("metric %s value %.4f crossed critical threshold %.4f",
		unhealthy.Name, unhealthy.Value, unhealthy.Threshold.CriticalThreshold)

	if !m.autoRollback {
		m.logger.Warn("flag unhealthy but automatic rollbacks are disabled",
			logger.FlagKey(flag.Key), logger.Reason(reason))
		return
	}

	result, err := m.executor.Rollback(ctx, RollbackRequest{
		FlagID:           flag.ID,
		Trigger:          flags.TriggerAutomatic,
		Reason:           reason,
		TargetPercentage: cfg.RollbackPercentage,
		ExecutedBy:       "safety-monitor",
	})
	if err != nil {
		m.logger.Error("rollback request rejected",
			logger.FlagKey(flag.Key), logger.Error(err))
		return
	}
	if !result.Success {
		m.logger.Error("automatic rollback did not apply",
			logger.FlagKey(flag.Key), slog.String("error", result.Error))
	}
}
