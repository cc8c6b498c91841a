package bucketing

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// AllocationTolerance is the permitted deviation when variant allocations are
// checked against a sum of 1.0. It absorbs accumulated floating-point error in
// configurations authored as fractions like 1/3.
const AllocationTolerance = 0.01

// Variant is one named arm of a flag or experiment with its traffic share.
type Variant struct {
	Key        string  `json:"key"`
	Allocation float64 `json:"allocation"`
}

// ValidateVariants checks that the variant set is non-empty and that
// allocations sum to 1.0 within AllocationTolerance.
func ValidateVariants(variants []Variant) error {
	if len(variants) == 0 {
		return ErrNoVariants
	}

	var sum float64
	for _, v := range variants {
		if v.Key == "" {
			return errors.Join(ErrInvalidAllocation, errors.New("variant key cannot be empty"))
		}
		if v.Allocation < 0 || v.Allocation > 1 {
			return errors.Join(ErrInvalidAllocation,
				fmt.Errorf("variant %q allocation %v is outside [0,1]", v.Key, v.Allocation))
		}
		sum += v.Allocation
	}

	if math.Abs(sum-1.0) > AllocationTolerance {
		return errors.Join(ErrInvalidAllocation,
			fmt.Errorf("variant allocations sum to %v, expected 1.0", sum))
	}

	return nil
}

// AssignVariant deterministically selects a variant for a user, or reports
// that the user falls outside the experiment's traffic slice.
//
// The decision is derived from two independent hash draws over the user id and
// the salt (or key when no salt is set): one draw gates traffic inclusion, the
// other selects the variant. Because the draws are independent, changing the
// variant split never reshuffles which users are inside the traffic slice, and
// changing the traffic allocation never reassigns variants for included users.
//
// The second return value is false when the user is outside the traffic slice;
// in that case the variant key is empty. Identical (userID, key, salt) inputs
// always produce the identical result, in-process and across machines.
func AssignVariant(userID, key string, variants []Variant, trafficAllocation float64, salt string) (string, bool, error) {
	if err := ValidateVariants(variants); err != nil {
		return "", false, err
	}
	if trafficAllocation < 0 || trafficAllocation > 1 {
		return "", false, errors.Join(ErrInvalidTrafficAllocation,
			fmt.Errorf("traffic allocation %v is outside [0,1]", trafficAllocation))
	}

	seed := salt
	if seed == "" {
		seed = key
	}

	trafficValue := hashUnit(userID + ":" + seed + "_traffic")
	if trafficValue >= trafficAllocation {
		return "", false, nil
	}

	variantValue := hashUnit(userID + ":" + seed + "_variant")

	var cumulative float64
	for _, v := range variants {
		cumulative += v.Allocation
		if variantValue < cumulative {
			return v.Key, true, nil
		}
	}

	// Rounding in the cumulative walk can leave a sliver above the last
	// boundary; the last variant absorbs it.
	return variants[len(variants)-1].Key, true, nil
}

// Bucket maps a user deterministically into one of numBuckets slots for
// percentage-based inclusion decisions. The result is uniform over
// [0, numBuckets) for well-distributed user ids.
func Bucket(userID, key string, numBuckets int) (int, error) {
	if numBuckets <= 0 {
		return 0, errors.Join(ErrInvalidBucketCount,
			fmt.Errorf("bucket count %d must be positive", numBuckets))
	}

	return int(hash32(userID+":"+key) % uint32(numBuckets)), nil
}

// hash32 derives a well-distributed 32-bit value from the input. MD5 is used
// for its distribution quality and cross-platform stability, not for
// cryptographic strength.
func hash32(input string) uint32 {
	sum := md5.Sum([]byte(input))
	return binary.BigEndian.Uint32(sum[:4])
}

// hashUnit normalizes a 32-bit hash of the input into [0, 1).
func hashUnit(input string) float64 {
	return float64(hash32(input)) / float64(math.MaxUint32+1.0)
}
