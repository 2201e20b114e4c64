package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kidase-app/kidase-rules/internal/liturgy"
	"github.com/kidase-app/kidase-rules/internal/types"
)

// evaluateRequest carries ad-hoc rules plus the date and state to evaluate
// them against. Snapshot fields are optional; a bare-rules request runs
// against calendar facts alone.
type evaluateRequest struct {
	Date         string            `json:"date,omitempty"`
	Rules        []json.RawMessage `json:"rules"`
	Presentation map[string]any    `json:"presentation,omitempty"`
	Slide        map[string]any    `json:"slide,omitempty"`
	Settings     map[string]any    `json:"settings,omitempty"`
	Vars         map[string]string `json:"vars,omitempty"`
}

func (s *Service) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if len(req.Rules) == 0 {
		writeError(w, http.StatusBadRequest, "rules must not be empty")
		return
	}

	vars := make([]types.Variable, 0, len(req.Vars))
	for name, value := range req.Vars {
		vars = append(vars, types.Variable{Name: name, Value: value})
	}

	ctx, err := s.contextFor(liturgy.Snapshot{
		Presentation: req.Presentation,
		Slide:        req.Slide,
		Settings:     req.Settings,
		Vars:         vars,
	}, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// One context per batch; per-rule parse failures skip, matching the
	// engine's batch policy.
	entries := make([]*types.RuleEntry, 0, len(req.Rules))
	for _, raw := range req.Rules {
		entry, err := types.ParseRuleEntry(raw)
		if err != nil {
			s.logger.Warn("skipping malformed rule in evaluate request", "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	// Drafts never touch the engine cache: they carry arbitrary or absent
	// ids, and the stored-rule endpoints read the same cache.
	writeJSON(w, http.StatusOK, map[string]any{
		"results": s.engine.EvaluateDrafts(entries, ctx),
	})
}

// slideVisibility is one slide's outcome in the visibility report.
type slideVisibility struct {
	SlideID types.SlideID  `json:"slideId"`
	Visible bool           `json:"visible"`
	Outcome map[string]any `json:"outcome,omitempty"`
}

// handleSlideVisibility reports, per slide, the merged outcome of the
// presentation's enabled slide-scope rules. Reading resolution runs once
// before any slide rule so every slide sees the same meta.reading.
func (s *Service) handleSlideVisibility(w http.ResponseWriter, r *http.Request) {
	presentationID := types.PresentationID(chi.URLParam(r, "id"))

	presentation, err := s.presentations.Get(presentationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "presentation not found")
		return
	}
	slides, err := s.presentations.Slides(presentationID)
	if err != nil {
		s.logger.Error("list slides", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	vars, err := s.presentations.Variables(presentationID)
	if err != nil {
		s.logger.Error("list variables", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	settings, err := s.presentations.Settings()
	if err != nil {
		s.logger.Error("list settings", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	ctx, err := s.contextFor(liturgy.Snapshot{
		Presentation: presentation.Snapshot(),
		Settings:     settings,
		Vars:         vars,
	}, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidates, err := s.readings.Candidates(s.rulesStore)
	if err != nil {
		s.logger.Error("load reading candidates", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	s.builder.ResolveReading(s.engine, candidates, ctx)

	ruleRows, err := s.rulesStore.ListEnabledForPresentation(types.ScopeSlide, presentationID)
	if err != nil {
		s.logger.Error("list slide rules", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	bySlide := make(map[types.SlideID][]*types.RuleEntry)
	for i := range ruleRows {
		row := &ruleRows[i]
		if !row.SlideID.Valid {
			continue
		}
		entry, err := row.Entry()
		if err != nil {
			s.logger.Warn("skipping malformed slide rule", "ruleId", string(row.ID), "error", err)
			continue
		}
		bySlide[types.SlideID(row.SlideID.String)] = append(bySlide[types.SlideID(row.SlideID.String)], entry)
	}

	report := make([]slideVisibility, 0, len(slides))
	for i := range slides {
		slide := &slides[i]
		entry := slideVisibility{SlideID: slide.ID, Visible: !slide.IsDisabled}

		slideCtx := s.builder.ForSlide(ctx, slide.Snapshot())
		for _, result := range s.engine.EvaluateMatched(bySlide[slide.ID], slideCtx) {
			// Outcomes arrive with refs and expressions already resolved.
			if visible, ok := result.Outcome["visible"].(bool); ok {
				entry.Visible = visible
			}
			if entry.Outcome == nil {
				entry.Outcome = make(map[string]any)
			}
			for k, v := range result.Outcome {
				entry.Outcome[k] = v
			}
		}
		report = append(report, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"slides": report})
}
