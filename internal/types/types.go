// Package types provides domain models shared across kidase-rules components.
//
// Zero-dependency design: types.go and errors.go use only the standard
// library. ID utilities in ids.go import uuid but are isolated so callers
// that only need the value types avoid the dependency.
//
// Rule JSON is authored by users and persisted as opaque text; this package
// models the parsed shape only. The engine in internal/rules owns the
// compiled (normalized) form.
package types

import "encoding/json"

// Scope identifies which entity a persisted rule is attached to.
type Scope string

const (
	ScopePresentation Scope = "presentation"
	ScopeSlide        Scope = "slide"
	ScopeReading      Scope = "reading"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopePresentation, ScopeSlide, ScopeReading:
		return true
	}
	return false
}

// RuleEntry is the authored form of a rule, parsed from persisted JSON.
// When is the condition clause, Then/Otherwise are free-form outcome objects
// whose values may embed "$ref:" strings or expression objects. Outcomes are
// resolved lazily at evaluation time, never at normalization time.
type RuleEntry struct {
	ID        RuleID         `json:"id" yaml:"id"`
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	When      map[string]any `json:"when" yaml:"when"`
	Then      map[string]any `json:"then" yaml:"then"`
	Otherwise map[string]any `json:"otherwise,omitempty" yaml:"otherwise,omitempty"`
}

// ParseRuleEntry decodes persisted rule JSON.
// Callers in batch loops treat a failure here as skip-with-warning, never
// as a reason to abort the batch.
func ParseRuleEntry(raw json.RawMessage) (*RuleEntry, error) {
	var entry RuleEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, ErrRuleParse
	}
	return &entry, nil
}

// Reading is one candidate liturgical-reading record. The engine treats its
// fields as opaque context values; only Priority and ID participate in
// candidate selection (lower priority wins).
type Reading struct {
	ID       ReadingID
	LineID   string
	Type     string
	Priority int
	Fields   map[string]any
}

// Variable is a per-presentation name/value pair exposed to rules under
// both "vars.name" and "vars.[name]" aliases. Value is the primary
// language; Translations holds the optional values for languages 2-4.
type Variable struct {
	Name         string
	Value        string
	Translations []string
}

// ValueIn returns the value for a 1-based language index. Language 1,
// unknown languages, and empty variants all fall back to Value.
func (v Variable) ValueIn(lang int) string {
	idx := lang - 2
	if idx < 0 || idx >= len(v.Translations) || v.Translations[idx] == "" {
		return v.Value
	}
	return v.Translations[idx]
}
