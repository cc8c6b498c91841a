// Package rolloutkit is a progressive-delivery control plane: deterministic
// percentage rollouts and experiment bucketing, a cached evaluation engine,
// sticky experiment assignments, and a safety monitor that rolls a flag back
// automatically when its health metrics degrade.
//
// The root package is a facade over the focused packages under pkg/:
//
//   - pkg/bucketing: deterministic hash-based variant and rollout bucketing
//   - pkg/rules: targeting rule interpretation
//   - pkg/flags: shared flag, experiment, and safety configuration types
//   - pkg/evaluator: cached flag and experiment evaluation
//   - pkg/assignment: sticky assignments with conditional-write stores
//   - pkg/safety: health checking, rollback execution, monitoring loop
//   - pkg/events: fire-and-forget evaluation/assignment event pipeline
//   - pkg/storage: PostgreSQL persistence for all of the above
//
// # Usage
//
//	var cfg rolloutkit.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	svc, err := rolloutkit.New(cfg, rolloutkit.Dependencies{
//		ConfigStore:     configStore,
//		AssignmentStore: assignmentStore,
//		FlagStore:       safetyStore,
//		Metrics:         metricsQuery,
//		Audit:           auditStore,
//	}, rolloutkit.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	if err := svc.Start(ctx); err != nil {
//		return err
//	}
//	defer svc.Stop()
//
//	result, err := svc.Evaluate(ctx, userID, "new-checkout", map[string]any{
//		"country": "DE",
//		"plan":    "pro",
//	})
//
// Evaluation is fail-safe: configuration fetch problems yield a disabled
// result with an explanatory reason instead of an error, so feature gates
// never break request handling.
package rolloutkit
