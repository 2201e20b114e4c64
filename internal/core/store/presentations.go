package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kidase-app/kidase-rules/internal/core/db"
	"github.com/kidase-app/kidase-rules/internal/types"
)

// PresentationRecord is a persisted presentation row.
type PresentationRecord struct {
	ID       types.PresentationID `db:"id"`
	Name     string               `db:"name"`
	Type     string               `db:"type"`
	IsActive bool                 `db:"is_active"`
}

// Snapshot renders the row as rule-context fields.
func (p *PresentationRecord) Snapshot() map[string]any {
	return map[string]any{
		"id":       string(p.ID),
		"name":     p.Name,
		"type":     p.Type,
		"isActive": p.IsActive,
	}
}

// SlideRecord is a persisted slide row.
type SlideRecord struct {
	ID             types.SlideID        `db:"id"`
	PresentationID types.PresentationID `db:"presentation_id"`
	SlideOrder     int                  `db:"slide_order"`
	LineID         sql.NullString       `db:"line_id"`
	TitleJSON      sql.NullString       `db:"title_json"`
	BlocksJSON     sql.NullString       `db:"blocks_json"`
	Notes          sql.NullString       `db:"notes"`
	IsDisabled     bool                 `db:"is_disabled"`
	IsDynamic      bool                 `db:"is_dynamic"`
}

// Snapshot renders the row as rule-context fields. The title JSON decodes
// into nested fields when well-formed and is dropped otherwise; slide rules
// match on titles often enough to warrant the decode.
func (s *SlideRecord) Snapshot() map[string]any {
	snap := map[string]any{
		"id":         string(s.ID),
		"order":      s.SlideOrder,
		"isDisabled": s.IsDisabled,
		"isDynamic":  s.IsDynamic,
	}
	if s.LineID.Valid {
		snap["lineId"] = s.LineID.String
	}
	if s.Notes.Valid {
		snap["notes"] = s.Notes.String
	}
	if s.TitleJSON.Valid {
		var title map[string]any
		if err := json.Unmarshal([]byte(s.TitleJSON.String), &title); err == nil {
			snap["title"] = title
		}
	}
	return snap
}

// settingRecord is one app_settings row.
type settingRecord struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// variableRecord is one variables row.
type variableRecord struct {
	ID             string         `db:"id"`
	PresentationID string         `db:"presentation_id"`
	Name           string         `db:"name"`
	Value          string         `db:"value"`
	ValueLang2     sql.NullString `db:"value_lang2"`
	ValueLang3     sql.NullString `db:"value_lang3"`
	ValueLang4     sql.NullString `db:"value_lang4"`
}

// PresentationStore reads presentation state for context assembly.
type PresentationStore struct {
	queries *db.Queries
}

func NewPresentationStore(queries *db.Queries) *PresentationStore {
	return &PresentationStore{queries: queries}
}

// Get returns one presentation by id.
func (s *PresentationStore) Get(id types.PresentationID) (*PresentationRecord, error) {
	var record PresentationRecord
	if err := s.queries.Get("get-presentation", &record, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("presentation %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("get presentation: %w", err)
	}
	return &record, nil
}

// Slides returns the presentation's slides in display order.
func (s *PresentationStore) Slides(id types.PresentationID) ([]SlideRecord, error) {
	var records []SlideRecord
	if err := s.queries.Select("list-slides", &records, string(id)); err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	return records, nil
}

// Variables returns the presentation's name/value variables.
func (s *PresentationStore) Variables(id types.PresentationID) ([]types.Variable, error) {
	var records []variableRecord
	if err := s.queries.Select("list-variables", &records, string(id)); err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	vars := make([]types.Variable, len(records))
	for i, r := range records {
		vars[i] = types.Variable{
			Name:  r.Name,
			Value: r.Value,
			Translations: []string{
				r.ValueLang2.String, r.ValueLang3.String, r.ValueLang4.String,
			},
		}
	}
	return vars, nil
}

// Settings returns all app settings as context fields.
func (s *PresentationStore) Settings() (map[string]any, error) {
	var records []settingRecord
	if err := s.queries.Select("list-settings", &records); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	settings := make(map[string]any, len(records))
	for _, r := range records {
		settings[r.Key] = r.Value
	}
	return settings, nil
}

// SetSetting upserts one app setting.
func (s *PresentationStore) SetSetting(key, value string) error {
	if _, err := s.queries.Exec("upsert-setting", key, value); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
