// internal/rules/expression.go
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * Outcome-side expression sublanguage.
 *
 * One $-operator per expression object: $concat, the four arithmetic
 * reducers, $toUpper/$toLower/$trim, $coalesce, $now, and $cond. Arguments
 * resolve recursively - nested expression objects, "$ref:" strings, and
 * arrays of either are all legal operands.
 *
 * Lenient numeric semantics: toNumber maps unparsable values to 0 and
 * $divide by zero yields 0. Rendering a slide must not abort because a
 * variable held "n/a".
 *
 * $cond re-enters condition evaluation through the ConditionEvaluator
 * interface supplied at construction. The interface breaks what would
 * otherwise be a constructor cycle with the evaluator; there is no
 * post-construction wiring step to forget.
 *
 * An unknown $-operator is a wiring defect and propagates as an error
 * (validation catches it at authoring time).
 */

// Clock supplies the current time; injectable for tests.
// $now is the only non-deterministic expression primitive.
type Clock func() time.Time

// ConditionEvaluator evaluates a raw when clause against a context.
// Implemented by the Engine; $cond re-enters rule evaluation through it.
type ConditionEvaluator interface {
	EvaluateCondition(when map[string]any, ctx *Context) (bool, error)
}

// ExpressionEvaluator computes derived outcome values.
type ExpressionEvaluator struct {
	now        Clock
	conditions ConditionEvaluator
}

// NewExpressionEvaluator wires the evaluator with its clock and condition
// capability.
func NewExpressionEvaluator(now Clock, conditions ConditionEvaluator) *ExpressionEvaluator {
	return &ExpressionEvaluator{now: now, conditions: conditions}
}

// expressionOps is the recognized operator set, shared with the validator.
var expressionOps = map[string]bool{
	"$concat": true, "$add": true, "$subtract": true, "$multiply": true,
	"$divide": true, "$toUpper": true, "$toLower": true, "$trim": true,
	"$coalesce": true, "$now": true, "$cond": true,
}

// splitExpression extracts the single recognized operator key of an
// expression object.
func splitExpression(expr map[string]any) (op string, arg any, ok bool) {
	for key, value := range expr {
		if expressionOps[key] {
			return key, value, true
		}
	}
	return "", nil, false
}

// IsExpression reports whether a map looks like an expression object.
func IsExpression(m map[string]any) bool {
	_, _, ok := splitExpression(m)
	return ok
}

// Evaluate computes one expression object against the context.
func (e *ExpressionEvaluator) Evaluate(expr map[string]any, ctx *Context) (any, error) {
	op, arg, ok := splitExpression(expr)
	if !ok {
		return nil, types.ErrUnknownExpression
	}

	switch op {
	case "$concat":
		return e.evalConcat(arg, ctx)
	case "$add", "$subtract", "$multiply", "$divide":
		return e.evalArithmetic(op, arg, ctx)
	case "$toUpper", "$toLower", "$trim":
		return e.evalStringOp(op, arg, ctx)
	case "$coalesce":
		return e.evalCoalesce(arg, ctx)
	case "$now":
		return e.now().Format(time.RFC3339), nil
	case "$cond":
		return e.evalCond(arg, ctx)
	}
	return nil, types.ErrUnknownExpression
}

// resolveOperand resolves one argument: nested expressions evaluate,
// "$ref:" strings resolve against the context, arrays resolve element-wise,
// everything else is a literal. Missing refs resolve to nil.
func (e *ExpressionEvaluator) resolveOperand(v any, ctx *Context) (any, error) {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, refPrefix) {
			resolved, _ := ResolvePath(strings.TrimPrefix(val, refPrefix), ctx)
			return resolved, nil
		}
		return val, nil
	case map[string]any:
		if IsExpression(val) {
			return e.Evaluate(val, ctx)
		}
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			resolved, err := e.resolveOperand(elem, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// resolveArgs resolves an argument list; a single bare value counts as a
// one-element list.
func (e *ExpressionEvaluator) resolveArgs(arg any, ctx *Context) ([]any, error) {
	resolved, err := e.resolveOperand(arg, ctx)
	if err != nil {
		return nil, err
	}
	if list, ok := resolved.([]any); ok {
		return list, nil
	}
	return []any{resolved}, nil
}

func (e *ExpressionEvaluator) evalConcat(arg any, ctx *Context) (any, error) {
	args, err := e.resolveArgs(arg, ctx)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, v := range args {
		sb.WriteString(toDisplayString(v))
	}
	return sb.String(), nil
}

func (e *ExpressionEvaluator) evalArithmetic(op string, arg any, ctx *Context) (any, error) {
	args, err := e.resolveArgs(arg, ctx)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return float64(0), nil
	}

	acc := toNumber(args[0])
	for _, v := range args[1:] {
		n := toNumber(v)
		switch op {
		case "$add":
			acc += n
		case "$subtract":
			acc -= n
		case "$multiply":
			acc *= n
		case "$divide":
			if n == 0 {
				// Lenient arithmetic: division by zero yields 0.
				acc = 0
			} else {
				acc /= n
			}
		}
	}
	return acc, nil
}

func (e *ExpressionEvaluator) evalStringOp(op string, arg any, ctx *Context) (any, error) {
	args, err := e.resolveArgs(arg, ctx)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return "", nil
	}
	s := toDisplayString(args[0])

	switch op {
	case "$toUpper":
		return strings.ToUpper(s), nil
	case "$toLower":
		return strings.ToLower(s), nil
	default:
		return strings.TrimSpace(s), nil
	}
}

func (e *ExpressionEvaluator) evalCoalesce(arg any, ctx *Context) (any, error) {
	args, err := e.resolveArgs(arg, ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range args {
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}

// evalCond evaluates {if, then, else}: the if clause runs through full
// condition evaluation, then the selected branch resolves recursively.
func (e *ExpressionEvaluator) evalCond(arg any, ctx *Context) (any, error) {
	cond, ok := arg.(map[string]any)
	if !ok {
		return nil, types.ErrBadExpression
	}
	ifClause, ok := cond["if"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: $cond requires an if clause", types.ErrBadExpression)
	}

	matched, err := e.conditions.EvaluateCondition(ifClause, ctx)
	if err != nil {
		return nil, err
	}

	branch := cond["else"]
	if matched {
		branch = cond["then"]
	}
	return e.resolveOperand(branch, ctx)
}

// toNumber converts leniently for arithmetic: numeric types pass through,
// numeric strings parse, anything else (including unparsable strings) is 0.
func toNumber(v any) float64 {
	if f, ok := toFloat64(v); ok {
		return f
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	if b, ok := v.(bool); ok && b {
		return 1
	}
	return 0
}

// toDisplayString renders a value for $concat and the string operators.
// Whole floats print without a trailing ".0" so JSON-decoded integers read
// naturally.
func toDisplayString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}
