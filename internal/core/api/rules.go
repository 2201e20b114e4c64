package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kidase-app/kidase-rules/internal/core/store"
	"github.com/kidase-app/kidase-rules/internal/types"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ruleBody is the wire form of a rule definition.
type ruleBody struct {
	ID           types.RuleID    `json:"id,omitempty"`
	Name         string          `json:"name"`
	Scope        types.Scope     `json:"scope"`
	Presentation string          `json:"presentationId,omitempty"`
	Slide        string          `json:"slideId,omitempty"`
	Reading      string          `json:"readingId,omitempty"`
	Rule         json.RawMessage `json:"rule"`
	Enabled      bool            `json:"enabled"`
}

func (b *ruleBody) record() *store.RuleRecord {
	return &store.RuleRecord{
		ID:             b.ID,
		Name:           b.Name,
		Scope:          b.Scope,
		PresentationID: nullable(b.Presentation),
		SlideID:        nullable(b.Slide),
		ReadingID:      nullable(b.Reading),
		RuleJSON:       string(b.Rule),
		IsEnabled:      b.Enabled,
	}
}

func recordBody(r *store.RuleRecord) ruleBody {
	return ruleBody{
		ID:           r.ID,
		Name:         r.Name,
		Scope:        r.Scope,
		Presentation: r.PresentationID.String,
		Slide:        r.SlideID.String,
		Reading:      r.ReadingID.String,
		Rule:         json.RawMessage(r.RuleJSON),
		Enabled:      r.IsEnabled,
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Service) handleListRules(w http.ResponseWriter, r *http.Request) {
	scope := types.Scope(r.URL.Query().Get("scope"))
	records, err := s.rulesStore.ListEnabled(scope)
	if err != nil {
		if errors.Is(err, types.ErrInvalidScope) {
			writeError(w, http.StatusBadRequest, "scope must be presentation, slide, or reading")
			return
		}
		s.logger.Error("list rules", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	bodies := make([]ruleBody, len(records))
	for i := range records {
		bodies[i] = recordBody(&records[i])
	}
	writeJSON(w, http.StatusOK, bodies)
}

func (s *Service) handleGetRule(w http.ResponseWriter, r *http.Request) {
	record, err := s.rulesStore.Get(types.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		if errors.Is(err, types.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.logger.Error("get rule", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, recordBody(record))
}

// decodeRuleBody reads and structurally checks a rule payload. The embedded
// rule JSON must parse and pass validation before it is persisted; warnings
// alone do not block.
func (s *Service) decodeRuleBody(w http.ResponseWriter, r *http.Request) (*ruleBody, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return nil, false
	}
	var body ruleBody
	if err := json.Unmarshal(raw, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return nil, false
	}
	if !body.Scope.Valid() {
		writeError(w, http.StatusBadRequest, "scope must be presentation, slide, or reading")
		return nil, false
	}

	entry, err := types.ParseRuleEntry(body.Rule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "rule is not valid rule JSON")
		return nil, false
	}
	if entry.ID == "" {
		entry.ID = body.ID
	}
	if entry.ID == "" {
		// Validation requires an id; the stored row id applies either way.
		entry.ID = types.NewRuleID()
		body.ID = entry.ID
	}
	if result := s.engine.Validate(entry); !result.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return nil, false
	}
	return &body, true
}

func (s *Service) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeRuleBody(w, r)
	if !ok {
		return
	}
	record := body.record()
	if err := s.rulesStore.Create(record); err != nil {
		s.logger.Error("create rule", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusCreated, recordBody(record))
}

func (s *Service) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeRuleBody(w, r)
	if !ok {
		return
	}
	record := body.record()
	record.ID = types.RuleID(chi.URLParam(r, "id"))
	if err := s.rulesStore.Update(record); err != nil {
		if errors.Is(err, types.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.logger.Error("update rule", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, recordBody(record))
}

func (s *Service) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	err := s.rulesStore.Delete(types.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		if errors.Is(err, types.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.logger.Error("delete rule", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleValidateRule(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	entry, err := types.ParseRuleEntry(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed rule JSON")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Validate(entry))
}
