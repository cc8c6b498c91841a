// Package evaluator decides, per user, whether a feature flag is enabled and
// which variant applies.
//
// Evaluation is a short-circuiting state machine: a disabled flag wins over
// everything, unmatched targeting rules win over the rollout percentage, and
// only users inside the rollout slice get a variant resolved. Every decision
// carries a reason code so callers and exposure events can explain the
// outcome.
//
// Configuration snapshots are fetched through a warm-start TTL cache with a
// bounded per-fetch timeout. The evaluation path is deliberately fail-safe:
// an unknown key or an unreachable store produces a disabled result with an
// explanatory reason instead of an error, which keeps batch evaluation robust
// and keeps request handlers free of store-failure plumbing. The only error a
// caller sees is a validation failure on its own input (empty user id).
package evaluator
