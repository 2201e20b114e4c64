// internal/liturgy/readings.go
package liturgy

import (
	"encoding/json"
	"sort"

	"github.com/kidase-app/kidase-rules/internal/rules"
	"github.com/kidase-app/kidase-rules/internal/types"
)

/*
 * Current-reading resolution.
 *
 * Several candidate readings can claim the same liturgical slot; each
 * carries selection rules persisted as opaque JSON. Resolution walks the
 * candidates ascending by priority (lower wins) and evaluates each
 * candidate's rules against a meta-only context. The first candidate with
 * any matching rule is merged into meta as meta.reading.* plus
 * meta.readingId; no match leaves meta untouched, which is a normal
 * outcome, not an error.
 *
 * A candidate rule that fails to parse or evaluate is logged and skipped.
 * The remaining rules and candidates still run.
 */

// RuleEvaluator is the slice of the engine reading resolution needs.
type RuleEvaluator interface {
	EvaluateRule(rule *types.RuleEntry, ctx *rules.Context) (*rules.EvaluationResult, error)
}

// Candidate pairs a reading with its persisted selection rules.
type Candidate struct {
	Reading types.Reading
	Rules   []json.RawMessage
}

// ResolveReading selects the current reading and merges it into ctx.Meta.
// Returns the winning reading and whether any candidate matched.
func (b *Builder) ResolveReading(eval RuleEvaluator, candidates []Candidate, ctx *rules.Context) (types.Reading, bool) {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Reading.Priority < ordered[j].Reading.Priority
	})

	metaCtx := ctx.MetaOnly()
	for _, candidate := range ordered {
		if b.candidateMatches(eval, candidate, metaCtx) {
			mergeReading(ctx.Meta, candidate.Reading)
			return candidate.Reading, true
		}
	}
	return types.Reading{}, false
}

func (b *Builder) candidateMatches(eval RuleEvaluator, candidate Candidate, metaCtx *rules.Context) bool {
	for _, raw := range candidate.Rules {
		entry, err := types.ParseRuleEntry(raw)
		if err != nil {
			b.logger.Warn("skipping malformed reading rule",
				"readingId", string(candidate.Reading.ID), "error", err)
			continue
		}
		result, err := eval.EvaluateRule(entry, metaCtx)
		if err != nil {
			b.logger.Warn("skipping failing reading rule",
				"readingId", string(candidate.Reading.ID),
				"ruleId", string(entry.ID), "error", err)
			continue
		}
		if result.Matched {
			return true
		}
	}
	return false
}

// mergeReading exposes the winner to subsequent rules as meta.reading.*.
func mergeReading(meta map[string]any, reading types.Reading) {
	fields := map[string]any{
		"id":       string(reading.ID),
		"lineId":   reading.LineID,
		"type":     reading.Type,
		"priority": reading.Priority,
	}
	for k, v := range reading.Fields {
		fields[k] = v
	}
	meta["reading"] = fields
	meta["readingId"] = string(reading.ID)
}
