// internal/rules/evaluate.go
package rules

import (
	"fmt"
	"strings"

	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * AST evaluation against a context snapshot.
 *
 * Node semantics:
 *   - Comparison: resolve path, resolve operand, dispatch operator. A
 *     missing field fails closed for every operator except $exists -
 *     missing data never matches. Deliberate policy; preserve it.
 *   - Logical: $and short-circuits on the first false child, $or on the
 *     first true child, $not negates its single child. Empty $and is true,
 *     empty $or is false.
 *   - Diff / NthDayAfter: resolve dates, run the calendar math, compare.
 *     Unparsable dates fail closed like missing data.
 *
 * The matched outcome (then, else otherwise, else empty) resolves lazily:
 * "$ref:" strings go through path resolution, expression objects through
 * the expression evaluator, and every resolved field is also collected into
 * ComputedValues.
 *
 * Errors out of evaluation are wiring defects (an operator missing from the
 * registry, an unknown expression op); bad user data never errors, it just
 * fails to match.
 */

// Evaluator walks compiled rule ASTs.
type Evaluator struct {
	registry *OperatorRegistry
	exprs    *ExpressionEvaluator
}

// NewEvaluator returns an evaluator over the given operator registry and
// expression evaluator.
func NewEvaluator(registry *OperatorRegistry, exprs *ExpressionEvaluator) *Evaluator {
	return &Evaluator{registry: registry, exprs: exprs}
}

// Evaluate runs one normalized rule against a context.
func (ev *Evaluator) Evaluate(rule *NormalizedRule, ctx *Context) (*EvaluationResult, error) {
	matched, err := ev.evalNode(rule.AST, ctx)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	outcome := rule.Then
	if !matched {
		outcome = rule.Otherwise
	}

	resolved, computed, err := ev.resolveOutcome(outcome, ctx)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	return &EvaluationResult{
		RuleID:         rule.ID,
		Matched:        matched,
		Outcome:        resolved,
		ComputedValues: computed,
	}, nil
}

// EvalNode exposes bare AST evaluation for callers that bypass outcome
// resolution ($cond re-entry, candidate-reading selection).
func (ev *Evaluator) EvalNode(node Node, ctx *Context) (bool, error) {
	return ev.evalNode(node, ctx)
}

func (ev *Evaluator) evalNode(node Node, ctx *Context) (bool, error) {
	switch n := node.(type) {
	case *ComparisonNode:
		return ev.evalComparison(n, ctx)
	case *LogicalNode:
		return ev.evalLogical(n, ctx)
	case *DiffNode:
		return ev.evalDiff(n, ctx)
	case *NthDayAfterNode:
		return ev.evalNthDayAfter(n, ctx)
	default:
		return false, types.ErrBadClause
	}
}

func (ev *Evaluator) evalComparison(node *ComparisonNode, ctx *Context) (bool, error) {
	field, found := ResolvePath(node.Path, ctx)
	operand := ev.resolveValue(node.Operand, ctx)

	if !found {
		// Missing data never matches; $exists:false is the one exception.
		if node.Operator == "$exists" {
			want, ok := operand.(bool)
			return ok && !want, nil
		}
		return false, nil
	}

	fn, ok := ev.registry.Get(node.Operator)
	if !ok {
		return false, fmt.Errorf("%w: %s", types.ErrUnknownOperator, node.Operator)
	}
	return fn(field, operand), nil
}

func (ev *Evaluator) evalLogical(node *LogicalNode, ctx *Context) (bool, error) {
	switch node.Operator {
	case "$and":
		for _, child := range node.Children {
			ok, err := ev.evalNode(child, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case "$or":
		for _, child := range node.Children {
			ok, err := ev.evalNode(child, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "$not":
		if len(node.Children) != 1 {
			return false, types.ErrBadClause
		}
		ok, err := ev.evalNode(node.Children[0], ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return false, types.ErrBadClause
}

func (ev *Evaluator) evalDiff(node *DiffNode, ctx *Context) (bool, error) {
	from, okFrom := parseDate(ev.resolveValue(node.From, ctx))
	to, okTo := parseDate(ev.resolveValue(node.To, ctx))
	if !okFrom || !okTo {
		return false, nil
	}

	diff, err := DateDiff(from, to, node.Unit)
	if err != nil {
		return false, err
	}

	want, ok := toNumberStrict(ev.resolveValue(node.Value, ctx))
	if !ok {
		return false, nil
	}
	return compareWithOp(node.Operator, compareFloats(float64(diff), want)), nil
}

func (ev *Evaluator) evalNthDayAfter(node *NthDayAfterNode, ctx *Context) (bool, error) {
	from, ok := parseDate(ev.resolveValue(node.From, ctx))
	if !ok {
		return false, nil
	}

	got := NthWeekdayOnOrAfter(from, node.Weekday, node.Nth)

	want, ok := parseDate(ev.resolveValue(node.Value, ctx))
	if !ok {
		return false, nil
	}

	cmp := compareFloats(float64(toCivil(got).Unix()), float64(toCivil(want).Unix()))
	return compareWithOp(node.Operator, cmp), nil
}

// resolveValue materializes a compiled value against the live context.
// Missing refs resolve to nil; the operator decides what nil means.
func (ev *Evaluator) resolveValue(v ResolvedValue, ctx *Context) any {
	switch v.Kind {
	case ValueRef:
		resolved, _ := ResolvePath(v.Ref, ctx)
		return resolved
	case ValueArray:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = ev.resolveValue(item, ctx)
		}
		return out
	default:
		return v.Literal
	}
}

// resolveOutcome materializes the matched outcome object. Fields holding
// "$ref:" strings or expression objects resolve against the context; every
// such resolved field is also collected into computed.
func (ev *Evaluator) resolveOutcome(outcome map[string]any, ctx *Context) (map[string]any, map[string]any, error) {
	resolved := make(map[string]any, len(outcome))
	var computed map[string]any

	for _, key := range sortedKeys(outcome) {
		value := outcome[key]
		switch v := value.(type) {
		case string:
			if strings.HasPrefix(v, refPrefix) {
				refValue, _ := ResolvePath(strings.TrimPrefix(v, refPrefix), ctx)
				resolved[key] = refValue
				computed = record(computed, key, refValue)
				continue
			}
			resolved[key] = v
		case map[string]any:
			if IsExpression(v) {
				exprValue, err := ev.exprs.Evaluate(v, ctx)
				if err != nil {
					return nil, nil, err
				}
				resolved[key] = exprValue
				computed = record(computed, key, exprValue)
				continue
			}
			resolved[key] = v
		default:
			resolved[key] = value
		}
	}
	return resolved, computed, nil
}

func record(m map[string]any, key string, value any) map[string]any {
	if m == nil {
		m = make(map[string]any)
	}
	m[key] = value
	return m
}
