// internal/rules/ast.go
package rules

import (
	"time"

	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * Compiled rule forms and the evaluation context snapshot.
 *
 * A rule's authored "when" clause normalizes into a small AST: comparison
 * leaves, logical combinators, and two calendar clauses ($diff,
 * $nthDayAfter). Outcome objects are NOT part of the AST; they pass through
 * unnormalized because their values may embed "$ref:" strings or expression
 * objects that only resolve against the live context.
 *
 * Condition-side values compile to ResolvedValue, a literal/ref/array form
 * that defers context lookup to evaluation time. Nothing context-dependent
 * is ever baked into a cached AST.
 */

// Node is one compiled element of a when clause.
type Node interface {
	isNode()
}

// ComparisonNode matches one field path against one operator/operand pair.
type ComparisonNode struct {
	Path     string
	Operator string
	Operand  ResolvedValue
}

// LogicalNode combines child nodes with $and, $or, or $not semantics.
// $not carries exactly one child.
type LogicalNode struct {
	Operator string
	Children []Node
}

// DiffNode compares a calendar-aware date difference against a value.
type DiffNode struct {
	From     ResolvedValue
	To       ResolvedValue
	Unit     string
	Operator string
	Value    ResolvedValue
}

// NthDayAfterNode compares the nth occurrence of a weekday on or after a
// start date against a value.
type NthDayAfterNode struct {
	From     ResolvedValue
	Weekday  time.Weekday
	Nth      int
	Operator string
	Value    ResolvedValue
}

func (*ComparisonNode) isNode()  {}
func (*LogicalNode) isNode()     {}
func (*DiffNode) isNode()        {}
func (*NthDayAfterNode) isNode() {}

// ValueKind tags the variants of ResolvedValue.
type ValueKind int

const (
	ValueLiteral ValueKind = iota
	ValueRef
	ValueArray
)

// ResolvedValue is a condition-side value in compiled form: a literal, a
// "$ref:path" context reference, or an array of either. Concrete values are
// produced only at evaluation time.
type ResolvedValue struct {
	Kind    ValueKind
	Literal any
	Ref     string
	Items   []ResolvedValue
}

// NormalizedRule is the cached, compiled form of a RuleEntry.
// Never mutated in place once stored in the cache.
type NormalizedRule struct {
	ID        types.RuleID
	AST       Node
	Then      map[string]any
	Otherwise map[string]any
}

// Context is the per-evaluation snapshot a rule is evaluated against.
// Immutable for the duration of one evaluation episode; callers running a
// multi-rule batch build one Context and reuse it for the whole batch to
// avoid clock/date drift mid-batch.
type Context struct {
	Presentation map[string]any
	Slide        map[string]any
	Vars         map[string]any
	Settings     map[string]any
	Meta         map[string]any
}

// Namespace returns the top-level map for a path's first segment.
func (c *Context) Namespace(name string) (map[string]any, bool) {
	if c == nil {
		return nil, false
	}
	switch name {
	case "presentation":
		return c.Presentation, c.Presentation != nil
	case "slide":
		return c.Slide, c.Slide != nil
	case "vars":
		return c.Vars, c.Vars != nil
	case "settings":
		return c.Settings, c.Settings != nil
	case "meta":
		return c.Meta, c.Meta != nil
	}
	return nil, false
}

// MetaOnly returns a context carrying only the meta namespace.
// Candidate-reading rules evaluate against calendar facts alone.
func (c *Context) MetaOnly() *Context {
	if c == nil {
		return &Context{}
	}
	return &Context{Meta: c.Meta}
}

// EvaluationResult is the outcome of evaluating one rule.
// ComputedValues collects every outcome field whose value required ref or
// expression resolution.
type EvaluationResult struct {
	RuleID         types.RuleID   `json:"ruleId"`
	Matched        bool           `json:"matched"`
	Outcome        map[string]any `json:"outcome"`
	ComputedValues map[string]any `json:"computedValues,omitempty"`
}
