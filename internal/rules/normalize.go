// internal/rules/normalize.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kidase-app/kidase-rules/internal/types"
	"github.com/mitchellh/mapstructure"
)

/*
 * Rule normalization: authored "when" JSON to compiled AST.
 *
 * Dispatch on clause shape:
 *   - $diff / $nthDayAfter present: one calendar node per comparison key in
 *     the clause body, implicit $and when there are several.
 *   - $and / $or: logical node over recursively normalized children.
 *   - $not: logical node wrapping one normalized child.
 *   - field path: bare literal is shorthand $eq; an operator object yields
 *     one comparison node per operator key, implicit $and when several.
 *
 * Multiple keys anywhere combine as implicit AND - that is the observed
 * semantics of the authoring format, not last-operator-wins.
 *
 * Map iteration order is randomized in Go, so every key walk sorts first;
 * identical input JSON must compile to structurally identical ASTs for the
 * cache to be trustworthy.
 *
 * Outcome objects (then/otherwise) pass through untouched: their values may
 * embed "$ref:" strings or expression objects that only make sense against
 * the live context at evaluation time.
 */

const refPrefix = "$ref:"

// diffClause is the typed part of a $diff body; comparison operator keys
// ride alongside and are collected via mapstructure's unused-key metadata.
type diffClause struct {
	From any    `mapstructure:"from"`
	To   any    `mapstructure:"to"`
	Unit string `mapstructure:"unit"`
}

// nthDayAfterClause is the typed part of a $nthDayAfter body.
type nthDayAfterClause struct {
	From any `mapstructure:"from"`
	Day  any `mapstructure:"day"`
	Nth  int `mapstructure:"nth"`
}

// Normalize compiles a rule's when clause into a NormalizedRule.
// Assumes the rule is validated or trusted; structural surprises surface as
// ErrBadClause rather than panics.
func Normalize(rule *types.RuleEntry) (*NormalizedRule, error) {
	ast, err := normalizeWhen(rule.When)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	return &NormalizedRule{
		ID:        rule.ID,
		AST:       ast,
		Then:      rule.Then,
		Otherwise: rule.Otherwise,
	}, nil
}

// normalizeWhen compiles one clause object. An empty clause compiles to an
// empty $and (vacuous true).
func normalizeWhen(when map[string]any) (Node, error) {
	if when == nil {
		return nil, types.ErrBadClause
	}

	// Reserved top-level calendar clauses take the whole object.
	if body, ok := when["$diff"]; ok {
		return normalizeDiff(body)
	}
	if body, ok := when["$nthDayAfter"]; ok {
		return normalizeNthDayAfter(body)
	}

	children := make([]Node, 0, len(when))
	for _, key := range sortedKeys(when) {
		node, err := normalizeEntry(key, when[key])
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}

	if len(children) == 1 {
		return children[0], nil
	}
	return &LogicalNode{Operator: "$and", Children: children}, nil
}

// normalizeEntry compiles a single key of a clause object.
func normalizeEntry(key string, value any) (Node, error) {
	switch key {
	case "$and", "$or":
		clauses, ok := value.([]any)
		if !ok {
			return nil, types.ErrBadClause
		}
		children := make([]Node, 0, len(clauses))
		for _, raw := range clauses {
			clause, ok := raw.(map[string]any)
			if !ok {
				return nil, types.ErrBadClause
			}
			child, err := normalizeWhen(clause)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return &LogicalNode{Operator: key, Children: children}, nil

	case "$not":
		clause, ok := value.(map[string]any)
		if !ok {
			return nil, types.ErrBadClause
		}
		child, err := normalizeWhen(clause)
		if err != nil {
			return nil, err
		}
		return &LogicalNode{Operator: "$not", Children: []Node{child}}, nil
	}

	// Field condition: bare literal is shorthand equality.
	operators, ok := value.(map[string]any)
	if !ok || !hasOperatorKey(operators) {
		return &ComparisonNode{Path: key, Operator: "$eq", Operand: toResolvedValue(value)}, nil
	}

	nodes := make([]Node, 0, len(operators))
	for _, op := range sortedKeys(operators) {
		nodes = append(nodes, &ComparisonNode{
			Path:     key,
			Operator: op,
			Operand:  toResolvedValue(operators[op]),
		})
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	// Multiple operators under one path AND together.
	return &LogicalNode{Operator: "$and", Children: nodes}, nil
}

// normalizeDiff compiles a $diff body into one DiffNode per comparison key.
func normalizeDiff(body any) (Node, error) {
	var clause diffClause
	extras, err := decodeClause(body, &clause)
	if err != nil {
		return nil, err
	}

	switch clause.Unit {
	case "days", "weeks", "months", "years":
	default:
		return nil, types.ErrBadDiffUnit
	}

	raw, _ := body.(map[string]any)
	nodes := make([]Node, 0, len(extras))
	for _, op := range extras {
		nodes = append(nodes, &DiffNode{
			From:     toResolvedValue(clause.From),
			To:       toResolvedValue(clause.To),
			Unit:     clause.Unit,
			Operator: op,
			Value:    toResolvedValue(raw[op]),
		})
	}
	if len(nodes) == 0 {
		return nil, types.ErrBadClause
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return &LogicalNode{Operator: "$and", Children: nodes}, nil
}

// normalizeNthDayAfter compiles a $nthDayAfter body.
// Day names map Sun=0..Sat=6; nth must be a positive integer.
func normalizeNthDayAfter(body any) (Node, error) {
	var clause nthDayAfterClause
	extras, err := decodeClause(body, &clause)
	if err != nil {
		return nil, err
	}

	weekday, err := ParseWeekday(clause.Day)
	if err != nil {
		return nil, err
	}
	if clause.Nth < 1 {
		return nil, types.ErrBadClause
	}

	raw, _ := body.(map[string]any)
	nodes := make([]Node, 0, len(extras))
	for _, op := range extras {
		nodes = append(nodes, &NthDayAfterNode{
			From:     toResolvedValue(clause.From),
			Weekday:  weekday,
			Nth:      clause.Nth,
			Operator: op,
			Value:    toResolvedValue(raw[op]),
		})
	}
	if len(nodes) == 0 {
		return nil, types.ErrBadClause
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return &LogicalNode{Operator: "$and", Children: nodes}, nil
}

// decodeClause decodes the typed fields of a calendar clause body and
// returns the remaining $-prefixed keys (the comparison operators), sorted.
func decodeClause(body any, target any) ([]string, error) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: &md,
		Result:   target,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(body); err != nil {
		return nil, types.ErrBadClause
	}

	var ops []string
	for _, key := range md.Unused {
		if strings.HasPrefix(key, "$") {
			ops = append(ops, key)
		}
	}
	sort.Strings(ops)
	return ops, nil
}

// toResolvedValue compiles a condition-side value to literal/ref/array form.
func toResolvedValue(v any) ResolvedValue {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, refPrefix) {
			return ResolvedValue{Kind: ValueRef, Ref: strings.TrimPrefix(val, refPrefix)}
		}
	case []any:
		items := make([]ResolvedValue, len(val))
		for i, elem := range val {
			items[i] = toResolvedValue(elem)
		}
		return ResolvedValue{Kind: ValueArray, Items: items}
	}
	return ResolvedValue{Kind: ValueLiteral, Literal: v}
}

// hasOperatorKey reports whether a condition object carries at least one
// $-prefixed key. Objects without one are literal operands (shorthand $eq
// against an object value).
func hasOperatorKey(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
