package rules

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Operator identifies a comparison applied to a context attribute. Both the
// long and short spellings are accepted to stay compatible with configs
// authored against either naming convention.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorEq          Operator = "eq"
	OperatorIn          Operator = "in"
	OperatorGreaterThan Operator = "greater_than"
	OperatorGt          Operator = "gt"
	OperatorLessThan    Operator = "less_than"
	OperatorLt          Operator = "lt"
)

// canonical maps every accepted spelling to its canonical form. Unknown
// operators are rejected at validation time, not silently treated as
// never-matching.
var canonical = map[Operator]Operator{
	OperatorEquals:      OperatorEquals,
	OperatorEq:          OperatorEquals,
	OperatorIn:          OperatorIn,
	OperatorGreaterThan: OperatorGreaterThan,
	OperatorGt:          OperatorGreaterThan,
	OperatorLessThan:    OperatorLessThan,
	OperatorLt:          OperatorLessThan,
}

// Rule is a single targeting condition over an evaluation context attribute.
// A set of rules on a flag or experiment is AND-combined.
type Rule struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value"`
}

// Validate checks the rule's structure. It is intended to run once when a
// configuration is loaded so that malformed rules fail fast instead of
// silently never matching.
func (r Rule) Validate() error {
	if r.Attribute == "" {
		return errors.Join(ErrInvalidRule, errors.New("attribute cannot be empty"))
	}

	op, ok := canonical[r.Operator]
	if !ok {
		return errors.Join(ErrUnknownOperator, fmt.Errorf("operator %q", r.Operator))
	}

	if op == OperatorIn {
		if _, ok := asList(r.Value); !ok {
			return errors.Join(ErrInvalidRule,
				fmt.Errorf("operator %q requires a list value, got %T", r.Operator, r.Value))
		}
	}

	return nil
}

// ValidateAll validates every rule in the set.
func ValidateAll(ruleSet []Rule) error {
	for i, r := range ruleSet {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// Matches evaluates the rule against the context. Rules fail closed: a missing
// or nil attribute never matches, and non-numeric operands fail numeric
// comparisons rather than erroring.
func (r Rule) Matches(evalCtx map[string]any) bool {
	actual, ok := evalCtx[r.Attribute]
	if !ok || actual == nil {
		return false
	}

	switch canonical[r.Operator] {
	case OperatorEquals:
		return equalValues(actual, r.Value)
	case OperatorIn:
		list, ok := asList(r.Value)
		if !ok {
			return false
		}
		for _, candidate := range list {
			if equalValues(actual, candidate) {
				return true
			}
		}
		return false
	case OperatorGreaterThan:
		a, b, ok := numericPair(actual, r.Value)
		return ok && a > b
	case OperatorLessThan:
		a, b, ok := numericPair(actual, r.Value)
		return ok && a < b
	default:
		return false
	}
}

// MatchAll reports whether the context satisfies every rule in the set. An
// empty rule set matches everything.
func MatchAll(ruleSet []Rule, evalCtx map[string]any) bool {
	for _, r := range ruleSet {
		if !r.Matches(evalCtx) {
			return false
		}
	}
	return true
}

// equalValues compares two scalars, treating numerically equal values as equal
// regardless of their Go type (reality of JSON-decoded contexts where every
// number arrives as float64).
func equalValues(a, b any) bool {
	if fa, okA := asFloat(a); okA {
		if fb, okB := asFloat(b); okB {
			return fa == fb
		}
	}
	return a == b
}

func numericPair(a, b any) (float64, float64, bool) {
	fa, okA := asFloat(a)
	fb, okB := asFloat(b)
	return fa, fb, okA && okB
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		// Strings are deliberately not coerced: "10" > 5 must fail the rule.
		return 0, false
	}
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, f := range list {
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}
