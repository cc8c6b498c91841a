package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rolloutkit/pkg/rules"
)

func TestRuleValidate(t *testing.T) {
	t.Parallel()

	t.Run("ValidRule", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"}
		require.NoError(t, r.Validate())
	})

	t.Run("EmptyAttribute", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Operator: rules.OperatorEquals, Value: "pro"}
		err := r.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, rules.ErrInvalidRule)
	})

	t.Run("UnknownOperator", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "plan", Operator: "regex", Value: ".*"}
		err := r.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, rules.ErrUnknownOperator)
	})

	t.Run("InRequiresList", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "country", Operator: rules.OperatorIn, Value: "US"}
		err := r.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, rules.ErrInvalidRule)
	})

	t.Run("ValidateAllReportsIndex", func(t *testing.T) {
		t.Parallel()
		err := rules.ValidateAll([]rules.Rule{
			{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"},
			{Attribute: "age", Operator: "between", Value: 5},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rule 1")
	})
}

func TestOperatorAliases(t *testing.T) {
	t.Parallel()

	evalCtx := map[string]any{"plan": "pro", "age": 30}

	aliasPairs := []struct {
		name string
		a, b rules.Rule
	}{
		{
			name: "EqualsEq",
			a:    rules.Rule{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"},
			b:    rules.Rule{Attribute: "plan", Operator: rules.OperatorEq, Value: "pro"},
		},
		{
			name: "GreaterThanGt",
			a:    rules.Rule{Attribute: "age", Operator: rules.OperatorGreaterThan, Value: 18},
			b:    rules.Rule{Attribute: "age", Operator: rules.OperatorGt, Value: 18},
		},
		{
			name: "LessThanLt",
			a:    rules.Rule{Attribute: "age", Operator: rules.OperatorLessThan, Value: 65},
			b:    rules.Rule{Attribute: "age", Operator: rules.OperatorLt, Value: 65},
		},
	}

	for _, pair := range aliasPairs {
		pair := pair
		t.Run(pair.name, func(t *testing.T) {
			t.Parallel()
			require.NoError(t, pair.a.Validate())
			require.NoError(t, pair.b.Validate())
			assert.Equal(t, pair.a.Matches(evalCtx), pair.b.Matches(evalCtx))
			assert.True(t, pair.a.Matches(evalCtx))
		})
	}
}

func TestRuleMatches(t *testing.T) {
	t.Parallel()

	t.Run("EqualsExactMatch", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"}
		assert.True(t, r.Matches(map[string]any{"plan": "pro"}))
		assert.False(t, r.Matches(map[string]any{"plan": "free"}))
	})

	t.Run("EqualsNumericCrossType", func(t *testing.T) {
		t.Parallel()
		// JSON-decoded contexts carry float64; configs may carry int.
		r := rules.Rule{Attribute: "tier", Operator: rules.OperatorEquals, Value: 2}
		assert.True(t, r.Matches(map[string]any{"tier": float64(2)}))
	})

	t.Run("MissingAttributeFailsClosed", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"}
		assert.False(t, r.Matches(map[string]any{}))
		assert.False(t, r.Matches(nil))
	})

	t.Run("NilAttributeFailsClosed", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "plan", Operator: rules.OperatorEquals, Value: "pro"}
		assert.False(t, r.Matches(map[string]any{"plan": nil}))
	})

	t.Run("InMembership", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "country", Operator: rules.OperatorIn, Value: []string{"US", "CA"}}
		assert.True(t, r.Matches(map[string]any{"country": "CA"}))
		assert.False(t, r.Matches(map[string]any{"country": "DE"}))
	})

	t.Run("InWithAnySlice", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "tier", Operator: rules.OperatorIn, Value: []any{1, 2, 3}}
		assert.True(t, r.Matches(map[string]any{"tier": float64(2)}))
	})

	t.Run("NumericComparison", func(t *testing.T) {
		t.Parallel()
		gt := rules.Rule{Attribute: "age", Operator: rules.OperatorGreaterThan, Value: 18}
		assert.True(t, gt.Matches(map[string]any{"age": 21}))
		assert.False(t, gt.Matches(map[string]any{"age": 18}))

		lt := rules.Rule{Attribute: "age", Operator: rules.OperatorLessThan, Value: 18}
		assert.True(t, lt.Matches(map[string]any{"age": 12}))
		assert.False(t, lt.Matches(map[string]any{"age": 18}))
	})

	t.Run("NonNumericOperandFailsNumericRule", func(t *testing.T) {
		t.Parallel()
		r := rules.Rule{Attribute: "age", Operator: rules.OperatorGreaterThan, Value: 18}
		assert.False(t, r.Matches(map[string]any{"age": "twenty-one"}))
		assert.False(t, r.Matches(map[string]any{"age": "21"}))
	})
}

func TestMatchAll(t *testing.T) {
	t.Parallel()

	ruleSet := []rules.Rule{
		{Attribute: "country", Operator: rules.OperatorIn, Value: []string{"US", "CA"}},
		{Attribute: "age", Operator: rules.OperatorGt, Value: 18},
	}

	t.Run("AllMatch", func(t *testing.T) {
		t.Parallel()
		assert.True(t, rules.MatchAll(ruleSet, map[string]any{"country": "US", "age": 30}))
	})

	t.Run("OneFailsAll", func(t *testing.T) {
		t.Parallel()
		assert.False(t, rules.MatchAll(ruleSet, map[string]any{"country": "DE", "age": 30}))
		assert.False(t, rules.MatchAll(ruleSet, map[string]any{"country": "US", "age": 10}))
	})

	t.Run("EmptySetMatchesEverything", func(t *testing.T) {
		t.Parallel()
		assert.True(t, rules.MatchAll(nil, nil))
		assert.True(t, rules.MatchAll([]rules.Rule{}, map[string]any{}))
	})
}
