// Package store persists rules, readings, and presentation state.
//
// Stores speak in domain types and keep rule JSON opaque: parsing happens
// at the edge (RuleRecord.Entry) so a malformed persisted rule surfaces as
// a typed error the caller logs and skips, never as a store failure.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kidase-app/kidase-rules/internal/core/db"
	"github.com/kidase-app/kidase-rules/internal/types"
)

// Invalidator is the slice of the engine the rule store needs: dropping a
// compiled rule when its definition changes. Updating a rule without
// invalidating would leave the engine evaluating the stale cached form.
type Invalidator interface {
	InvalidateRule(id types.RuleID)
}

// RuleRecord is a persisted rule definition row.
type RuleRecord struct {
	ID             types.RuleID   `db:"id"`
	Name           string         `db:"name"`
	Scope          types.Scope    `db:"scope"`
	PresentationID sql.NullString `db:"presentation_id"`
	SlideID        sql.NullString `db:"slide_id"`
	ReadingID      sql.NullString `db:"reading_id"`
	RuleJSON       string         `db:"rule_json"`
	IsEnabled      bool           `db:"is_enabled"`
}

// Entry parses the persisted rule JSON. The row id is authoritative; it
// overrides whatever id the JSON body carries.
func (r *RuleRecord) Entry() (*types.RuleEntry, error) {
	entry, err := types.ParseRuleEntry(json.RawMessage(r.RuleJSON))
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	entry.ID = r.ID
	if entry.Name == "" {
		entry.Name = r.Name
	}
	return entry, nil
}

// RuleStore persists rule definitions and keeps the engine cache coherent.
type RuleStore struct {
	queries *db.Queries
	engine  Invalidator
}

func NewRuleStore(queries *db.Queries, engine Invalidator) *RuleStore {
	return &RuleStore{queries: queries, engine: engine}
}

// ListEnabled returns enabled rules of one scope.
func (s *RuleStore) ListEnabled(scope types.Scope) ([]RuleRecord, error) {
	if !scope.Valid() {
		return nil, types.ErrInvalidScope
	}
	var records []RuleRecord
	if err := s.queries.Select("list-enabled-rules-by-scope", &records, string(scope), true); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return records, nil
}

// ListEnabledForPresentation returns enabled rules of one scope attached to
// a presentation.
func (s *RuleStore) ListEnabledForPresentation(scope types.Scope, presentationID types.PresentationID) ([]RuleRecord, error) {
	if !scope.Valid() {
		return nil, types.ErrInvalidScope
	}
	var records []RuleRecord
	err := s.queries.Select("list-enabled-rules-for-presentation", &records,
		string(scope), string(presentationID), true)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return records, nil
}

// Get returns one rule by id.
func (s *RuleStore) Get(id types.RuleID) (*RuleRecord, error) {
	var record RuleRecord
	if err := s.queries.Get("get-rule", &record, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrRuleNotFound
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &record, nil
}

// Create inserts a new rule definition.
func (s *RuleStore) Create(record *RuleRecord) error {
	if !record.Scope.Valid() {
		return types.ErrInvalidScope
	}
	if record.ID == "" {
		record.ID = types.NewRuleID()
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)
	_, err := s.queries.Exec("insert-rule",
		string(record.ID), record.Name, string(record.Scope),
		record.PresentationID, record.SlideID, record.ReadingID,
		record.RuleJSON, record.IsEnabled, createdAt)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// Update rewrites a rule definition and invalidates its compiled form.
// The engine caches by id alone, so skipping invalidation here would keep
// the old AST live until its TTL.
func (s *RuleStore) Update(record *RuleRecord) error {
	if !record.Scope.Valid() {
		return types.ErrInvalidScope
	}
	result, err := s.queries.Exec("update-rule",
		record.Name, string(record.Scope),
		record.PresentationID, record.SlideID, record.ReadingID,
		record.RuleJSON, record.IsEnabled, string(record.ID))
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return types.ErrRuleNotFound
	}
	s.engine.InvalidateRule(record.ID)
	return nil
}

// Delete removes a rule definition and invalidates its compiled form.
func (s *RuleStore) Delete(id types.RuleID) error {
	result, err := s.queries.Exec("delete-rule", string(id))
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return types.ErrRuleNotFound
	}
	s.engine.InvalidateRule(id)
	return nil
}
