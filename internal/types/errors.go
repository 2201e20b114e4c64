package types

import "errors"

// Sentinel errors for kidase-rules operations.
var (
	// ErrRuleParse indicates persisted rule JSON failed to decode.
	// Batch callers log and skip; one malformed rule never blocks the rest.
	ErrRuleParse = errors.New("rule JSON failed to parse")

	// ErrRuleNotFound indicates a rule ID has no persisted row.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrUnknownOperator indicates a comparison operator absent from the
	// registry reached evaluation. A wiring defect, not bad user data.
	ErrUnknownOperator = errors.New("unknown comparison operator")

	// ErrUnknownExpression indicates an outcome expression object has no
	// recognized $-operator key.
	ErrUnknownExpression = errors.New("unknown expression operator")

	// ErrBadExpression indicates an expression operand has the wrong shape
	// (e.g. $cond without an "if" clause).
	ErrBadExpression = errors.New("malformed expression operand")

	// ErrBadDiffUnit indicates a $diff unit outside days/weeks/months/years.
	ErrBadDiffUnit = errors.New("unsupported date diff unit")

	// ErrBadWeekday indicates a $nthDayAfter day outside Sun..Sat / 0..6.
	ErrBadWeekday = errors.New("day of week must be a name or integer 0-6")

	// ErrBadClause indicates a when-clause shape the normalizer cannot
	// compile (validation would have flagged it at authoring time).
	ErrBadClause = errors.New("malformed rule clause")

	// ErrInvalidScope indicates a rule row carries an unknown scope value.
	ErrInvalidScope = errors.New("invalid rule scope")
)
