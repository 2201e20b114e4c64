// internal/rules/engine.go
package rules

import (
	"log/slog"
	"time"

	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * Engine composition root.
 *
 * Owns the operator registry, validator, evaluator, expression evaluator,
 * and AST cache as instance state - there is no package-level singleton;
 * the process's composition root constructs one Engine and passes it to
 * every consumer.
 *
 * Normalize is cache-or-build keyed by rule id only. The engine never
 * hashes rule content: an edited rule under the same id evaluates stale
 * until InvalidateRule runs. Persistence callers invalidate in the same
 * transaction as the edit.
 *
 * Batch entry points (EvaluateAll, EvaluateMatched) apply the partial-data
 * policy: a rule that fails to normalize or evaluate is logged and skipped,
 * never aborting the rest of the batch.
 */

// Engine wires the rule pipeline: validate -> normalize -> cache ->
// evaluate.
type Engine struct {
	registry  *OperatorRegistry
	validator *Validator
	evaluator *Evaluator
	exprs     *ExpressionEvaluator
	cache     *ASTCache
	clock     Clock
	logger    *slog.Logger
}

// Options configures an Engine; zero values select defaults.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Clock     Clock
	Logger    *slog.Logger
}

// NewEngine constructs a fully wired engine.
func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	registry := NewOperatorRegistry()
	e := &Engine{
		registry:  registry,
		validator: NewValidator(registry),
		cache:     NewASTCache(opts.CacheSize, opts.CacheTTL),
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	// The engine itself is the condition capability behind $cond.
	e.exprs = NewExpressionEvaluator(opts.Clock, e)
	e.evaluator = NewEvaluator(registry, e.exprs)
	return e
}

// Validate runs authoring-time structural checks. Advisory only; it is
// never called on the evaluation path.
func (e *Engine) Validate(rule *types.RuleEntry) ValidationResult {
	return e.validator.Validate(rule)
}

// Normalize returns the compiled form of a rule, from cache when possible.
func (e *Engine) Normalize(rule *types.RuleEntry) (*NormalizedRule, error) {
	if cached, ok := e.cache.Get(rule.ID); ok {
		return cached, nil
	}
	normalized, err := Normalize(rule)
	if err != nil {
		return nil, err
	}
	e.cache.Set(rule.ID, normalized)
	return normalized, nil
}

// EvaluateRule normalizes (cache-or-build) and evaluates one rule.
func (e *Engine) EvaluateRule(rule *types.RuleEntry, ctx *Context) (*EvaluationResult, error) {
	normalized, err := e.Normalize(rule)
	if err != nil {
		return nil, err
	}
	return e.evaluator.Evaluate(normalized, ctx)
}

// EvaluateDraft compiles and evaluates a rule without touching the cache.
// Unsaved drafts share ids (often no id at all) with each other and with
// persisted rules; caching them would serve one draft's compiled form for
// another, or shadow a stored rule under the same id.
func (e *Engine) EvaluateDraft(rule *types.RuleEntry, ctx *Context) (*EvaluationResult, error) {
	normalized, err := Normalize(rule)
	if err != nil {
		return nil, err
	}
	return e.evaluator.Evaluate(normalized, ctx)
}

// EvaluateDrafts evaluates a draft batch against one shared context with
// the same skip-and-warn policy as EvaluateAll.
func (e *Engine) EvaluateDrafts(entries []*types.RuleEntry, ctx *Context) []*EvaluationResult {
	results := make([]*EvaluationResult, 0, len(entries))
	for _, entry := range entries {
		result, err := e.EvaluateDraft(entry, ctx)
		if err != nil {
			e.logger.Warn("skipping draft rule in batch", "ruleId", string(entry.ID), "error", err)
			continue
		}
		results = append(results, result)
	}
	return results
}

// EvaluateAll evaluates a batch against one shared context. Per-rule
// failures are logged and skipped.
func (e *Engine) EvaluateAll(entries []*types.RuleEntry, ctx *Context) []*EvaluationResult {
	results := make([]*EvaluationResult, 0, len(entries))
	for _, entry := range entries {
		result, err := e.EvaluateRule(entry, ctx)
		if err != nil {
			e.logger.Warn("skipping rule in batch", "ruleId", string(entry.ID), "error", err)
			continue
		}
		results = append(results, result)
	}
	return results
}

// EvaluateMatched evaluates a batch and keeps only matching results.
func (e *Engine) EvaluateMatched(entries []*types.RuleEntry, ctx *Context) []*EvaluationResult {
	all := e.EvaluateAll(entries, ctx)
	matched := make([]*EvaluationResult, 0, len(all))
	for _, result := range all {
		if result.Matched {
			matched = append(matched, result)
		}
	}
	return matched
}

// EvaluateCondition implements ConditionEvaluator for $cond re-entry:
// an anonymous when clause compiles (uncached) and evaluates directly.
func (e *Engine) EvaluateCondition(when map[string]any, ctx *Context) (bool, error) {
	node, err := normalizeWhen(when)
	if err != nil {
		return false, err
	}
	return e.evaluator.EvalNode(node, ctx)
}

// InvalidateRule drops one compiled rule. Callers that edit a rule in
// place must call this in the same transaction as the edit.
func (e *Engine) InvalidateRule(id types.RuleID) {
	e.cache.Invalidate(id)
}

// ClearCache drops every compiled rule.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// RegisterOperator adds a custom comparison operator. Registered operators
// pass validation the same as built-ins.
func (e *Engine) RegisterOperator(name string, fn OperatorFunc) {
	e.registry.Register(name, fn)
}

// ResolvePath exposes context path resolution to collaborators.
func (e *Engine) ResolvePath(path string, ctx *Context) (any, bool) {
	return ResolvePath(path, ctx)
}
