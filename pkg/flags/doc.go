// Package flags defines the shared data model of the progressive-delivery
// control plane: flag and experiment configuration snapshots, sticky
// experiment assignments, per-flag safety policies, and rollback audit
// records.
//
// Configurations are immutable snapshots fetched from an external store; the
// Validate methods run once at load time and enforce the structural
// invariants (rollout percentage within [0,100], variant allocations summing
// to 1.0, experiments carrying at least two variants, well-formed targeting
// rules) so downstream evaluation can assume well-formed inputs.
package flags
