package evaluator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/rolloutkit/pkg/bucketing"
	"github.com/dmitrymomot/rolloutkit/pkg/configcache"
	"github.com/dmitrymomot/rolloutkit/pkg/events"
	"github.com/dmitrymomot/rolloutkit/pkg/flags"
	"github.com/dmitrymomot/rolloutkit/pkg/logger"
	"github.com/dmitrymomot/rolloutkit/pkg/rules"
)

// ConfigStore supplies flag and experiment snapshots by key. Implementations
// return ErrFlagNotFound / ErrExperimentNotFound for unknown keys and may
// return transient errors for store failures; both cases are absorbed by the
// evaluator rather than surfaced to request handlers.
type ConfigStore interface {
	GetFlag(ctx context.Context, key string) (*flags.FlagConfig, error)
	GetExperiment(ctx context.Context, key string) (*flags.ExperimentConfig, error)
}

// Reason explains an evaluation decision. Exactly one reason is produced per
// evaluation; earlier checks short-circuit later ones.
type Reason string

const (
	ReasonFlagDisabled         Reason = "flag_disabled"
	ReasonTargetingRulesNotMet Reason = "targeting_rules_not_met"
	ReasonNotInRollout         Reason = "not_in_rollout"
	ReasonEnabled              Reason = "enabled"
	ReasonFlagNotFound         Reason = "flag_not_found"
	ReasonConfigUnavailable    Reason = "config_unavailable"
)

// Result is the outcome of evaluating one flag for one user.
type Result struct {
	Enabled bool   `json:"enabled"`
	Reason  Reason `json:"reason"`
	Variant string `json:"variant,omitempty"`
}

// Evaluator decides flag state per user. It is safe for concurrent use from
// request-handling goroutines: evaluation is side-effect-free apart from
// cache population and non-blocking event emission.
type Evaluator struct {
	store           ConfigStore
	flagCache       *configcache.Cache[*flags.FlagConfig]
	experimentCache *configcache.Cache[*flags.ExperimentConfig]
	emitter         *events.Emitter
	fetchTimeout    time.Duration
	logger          *slog.Logger
}

// Option configures evaluator creation.
type Option func(*options)

type options struct {
	cacheTTL     time.Duration
	fetchTimeout time.Duration
	emitter      *events.Emitter
	logger       *slog.Logger
}

// WithCacheTTL overrides the default 300s config cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

// WithFetchTimeout bounds a single store fetch on a cache miss.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.fetchTimeout = timeout
		}
	}
}

// WithEmitter enables exposure-event emission. Emission never blocks or
// fails an evaluation.
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

// New creates an evaluator backed by store. Call Close when done to release
// the warm-start caches.
func New(store ConfigStore, opts ...Option) (*Evaluator, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	o := &options{
		cacheTTL:     configcache.DefaultTTL,
		fetchTimeout: 2 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Evaluator{
		store:           store,
		flagCache:       configcache.New[*flags.FlagConfig](configcache.WithTTL(o.cacheTTL)),
		experimentCache: configcache.New[*flags.ExperimentConfig](configcache.WithTTL(o.cacheTTL)),
		emitter:         o.emitter,
		fetchTimeout:    o.fetchTimeout,
		logger:          o.logger,
	}, nil
}

// Close releases cache resources.
func (e *Evaluator) Close() {
	e.flagCache.Close()
	e.experimentCache.Close()
}

// CacheStats reports warm-start cache effectiveness for the flag cache.
func (e *Evaluator) CacheStats() configcache.Stats {
	return e.flagCache.Stats()
}

// Evaluate decides whether flagKey is enabled for userID with the given
// evaluation context. Unknown keys and store failures produce safe disabled
// results, never errors; the only error condition is an empty user id.
func (e *Evaluator) Evaluate(ctx context.Context, userID, flagKey string, evalCtx map[string]any) (Result, error) {
	if userID == "" {
		return Result{}, ErrEmptyUserID
	}

	cfg, reason, ok := e.fetchFlag(ctx, flagKey)
	if !ok {
		return Result{Enabled: false, Reason: reason}, nil
	}

	result, err := e.EvaluateFlag(ctx, userID, cfg, evalCtx)
	if err != nil {
		return Result{}, err
	}

	e.emit(userID, flagKey, result, evalCtx)
	return result, nil
}

// EvaluateFlag runs the decision state machine against an already-fetched
// snapshot. Each state short-circuits: a disabled flag never consults
// targeting rules, and unmatched targeting never consults the rollout
// percentage.
func (e *Evaluator) EvaluateFlag(ctx context.Context, userID string, cfg *flags.FlagConfig, evalCtx map[string]any) (Result, error) {
	if userID == "" {
		return Result{}, ErrEmptyUserID
	}
	if cfg == nil {
		return Result{Enabled: false, Reason: ReasonFlagNotFound}, nil
	}

	if !cfg.Enabled {
		return Result{Enabled: false, Reason: ReasonFlagDisabled}, nil
	}

	if len(cfg.TargetingRules) > 0 && !rules.MatchAll(cfg.TargetingRules, evalCtx) {
		return Result{Enabled: false, Reason: ReasonTargetingRulesNotMet}, nil
	}

	inRollout, err := e.inRollout(userID, cfg)
	if err != nil {
		return Result{}, err
	}
	if !inRollout {
		return Result{Enabled: false, Reason: ReasonNotInRollout}, nil
	}

	result := Result{Enabled: true, Reason: ReasonEnabled}
	if len(cfg.Variants) > 0 {
		// Traffic gating already happened via the rollout percentage, so the
		// variant draw runs at full allocation.
		variant, _, err := bucketing.AssignVariant(userID, cfg.Key, cfg.Variants, 1.0, "")
		if err != nil {
			return Result{}, err
		}
		result.Variant = variant
	}

	return result, nil
}

// BatchEvaluate evaluates each key independently. An unknown or failing key
// yields a safe disabled result under that key; one bad key never aborts the
// batch.
func (e *Evaluator) BatchEvaluate(ctx context.Context, userID string, flagKeys []string, evalCtx map[string]any) (map[string]Result, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	results := make(map[string]Result, len(flagKeys))
	for _, key := range flagKeys {
		cfg, reason, ok := e.fetchFlag(ctx, key)
		if !ok {
			results[key] = Result{Enabled: false, Reason: reason}
			continue
		}

		result, err := e.EvaluateFlag(ctx, userID, cfg, evalCtx)
		if err != nil {
			// Snapshot-level validation failures degrade the single key, the
			// same way a missing config would.
			e.logger.Warn("flag evaluation degraded",
				logger.FlagKey(key), logger.Error(err))
			results[key] = Result{Enabled: false, Reason: ReasonConfigUnavailable}
			continue
		}

		e.emit(userID, key, result, evalCtx)
		results[key] = result
	}

	return results, nil
}

// Experiment returns the cached experiment snapshot for key.
func (e *Evaluator) Experiment(ctx context.Context, key string) (*flags.ExperimentConfig, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	cfg, found, err := e.experimentCache.GetOrFetch(fetchCtx, key, func(ctx context.Context) (*flags.ExperimentConfig, bool, error) {
		cfg, err := e.store.GetExperiment(ctx, key)
		if errors.Is(err, ErrExperimentNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, false, err
		}
		return cfg, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrExperimentNotFound
	}
	return cfg, nil
}

// fetchFlag resolves a flag snapshot through the warm-start cache. The third
// return value is false when no usable snapshot exists; the reason then says
// whether the key is unknown or the store was unavailable.
func (e *Evaluator) fetchFlag(ctx context.Context, key string) (*flags.FlagConfig, Reason, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	cfg, found, err := e.flagCache.GetOrFetch(fetchCtx, key, func(ctx context.Context) (*flags.FlagConfig, bool, error) {
		cfg, err := e.store.GetFlag(ctx, key)
		if errors.Is(err, ErrFlagNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, false, err
		}
		return cfg, true, nil
	})
	if err != nil {
		// Fail safe: a slow or broken store disables the flag for this call
		// instead of failing the request.
		e.logger.Warn("flag config fetch failed, treating flag as disabled",
			logger.FlagKey(key), logger.Error(err))
		return nil, ReasonConfigUnavailable, false
	}
	if !found {
		return nil, ReasonFlagNotFound, false
	}
	return cfg, "", true
}

func (e *Evaluator) inRollout(userID string, cfg *flags.FlagConfig) (bool, error) {
	switch cfg.RolloutPercentage {
	case 0:
		return false, nil
	case 100:
		return true, nil
	}

	bucket, err := bucketing.Bucket(userID, cfg.Key, 100)
	if err != nil {
		return false, err
	}
	return bucket < cfg.RolloutPercentage, nil
}

func (e *Evaluator) emit(userID, flagKey string, result Result, evalCtx map[string]any) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Event{
		Type:    events.TypeEvaluation,
		FlagKey: flagKey,
		UserID:  userID,
		Enabled: result.Enabled,
		Variant: result.Variant,
		Reason:  string(result.Reason),
		Context: evalCtx,
	})
}
