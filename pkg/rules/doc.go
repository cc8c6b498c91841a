// Package rules implements the targeting-rule interpreter shared by flag
// evaluation and experiment assignment.
//
// A rule compares one attribute of a string-keyed evaluation context against a
// configured value. Rule sets are AND-combined, and evaluation fails closed: a
// missing or nil attribute, a non-numeric operand on a numeric comparison, or
// a scalar value on a membership check all fail the rule rather than matching
// or raising an error.
//
// Both spellings of each comparison operator are accepted (equals/eq,
// greater_than/gt, less_than/lt) so configurations written against either
// naming convention evaluate identically. Structural problems, including
// operators outside this set, are rejected by Validate when a configuration
// is loaded, never deferred to evaluation time.
//
// # Usage
//
//	ruleSet := []rules.Rule{
//		{Attribute: "country", Operator: rules.OperatorIn, Value: []string{"US", "CA"}},
//		{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"},
//	}
//
//	if err := rules.ValidateAll(ruleSet); err != nil {
//		// Reject the configuration
//	}
//
//	matched := rules.MatchAll(ruleSet, map[string]any{
//		"country": "US",
//		"plan":    "pro",
//	})
package rules
