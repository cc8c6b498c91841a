// Package bucketing provides the deterministic assignment primitives used for
// percentage rollouts and experiment variant selection.
//
// All decisions are pure functions of the user id, the flag or experiment key,
// and an optional salt: no local randomness, no process-specific seed. The same
// inputs produce the same result on every call, in every process, on every
// machine, which is what makes assignments consistent across a fleet of
// stateless evaluators.
//
// # Traffic inclusion vs. variant selection
//
// AssignVariant uses two independent hash draws: one decides whether the user
// is inside the experiment's traffic slice at all, the other picks the variant
// arm. Keeping the draws independent means operators can widen or narrow the
// traffic allocation without reshuffling variant membership, and rebalance the
// variant split without moving users in or out of the experiment.
//
// # Usage
//
//	variants := []bucketing.Variant{
//		{Key: "control", Allocation: 0.5},
//		{Key: "treatment", Allocation: 0.5},
//	}
//
//	variant, included, err := bucketing.AssignVariant("user-42", "checkout-v2", variants, 1.0, "")
//	if err != nil {
//		// Handle validation error
//	}
//	if !included {
//		// User is outside the traffic slice
//	}
//
// Bucket maps a user into one of N slots for rollout-percentage checks:
//
//	bucket, err := bucketing.Bucket("user-42", "checkout-v2", 100)
//	enabled := bucket < rolloutPercentage
package bucketing
