package rules

import "errors"

// Predefined errors for the rules package.
var (
	// ErrInvalidRule indicates a structurally malformed targeting rule.
	ErrInvalidRule = errors.New("rules: invalid targeting rule")

	// ErrUnknownOperator indicates an operator outside the supported set.
	ErrUnknownOperator = errors.New("rules: unknown operator")
)
