// Package safety implements the health-monitoring feedback loop that watches
// rolled-out flags and automatically reduces exposure when they degrade.
//
// Three pieces cooperate. The Checker reads each configured health metric
// through the external MetricsQuery and classifies it against its warning and
// critical thresholds; a metric that cannot be read degrades to "unknown" and
// is never treated as unhealthy, so missing data cannot trigger a rollback.
// The Executor applies a rollout reduction: the percentage change and its
// audit record commit atomically, and a concurrent manual edit of the same
// flag surfaces as a conflict instead of being silently overwritten. The
// Monitor is the timer loop tying them together, sweeping active flags at a
// configurable interval with a single-flight guard so a slow sweep never
// overlaps the next one.
//
// Manual rollbacks go through the same Executor path with a manual trigger
// type, so the audit trail is uniform regardless of who initiated the
// reduction.
package safety
