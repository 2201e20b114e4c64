package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/kidase-app/kidase-rules/internal/core/config"
	"github.com/kidase-app/kidase-rules/internal/core/db"
	"github.com/kidase-app/kidase-rules/internal/core/store"
	"github.com/kidase-app/kidase-rules/internal/liturgy"
	"github.com/kidase-app/kidase-rules/internal/rules"
)

type apiFixture struct {
	router chi.Router
	db     *sqlx.DB
}

// newTestService wires a full stack on a temp SQLite database with a clock
// pinned to Sunday 2026-08-30.
func newTestService(t *testing.T) *apiFixture {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "api.db")
	database, err := db.Open("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.MigrateUp(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		t.Fatalf("load queries: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := rules.NewEngine(rules.Options{Logger: logger})
	builder := liturgy.NewBuilder(liturgy.BuilderOptions{
		Clock:  func() time.Time { return time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC) },
		Logger: logger,
	})

	service, err := NewService(Deps{
		Engine:        engine,
		Builder:       builder,
		Rules:         store.NewRuleStore(queries, engine),
		Readings:      store.NewReadingStore(queries),
		Presentations: store.NewPresentationStore(queries),
		Config:        config.DefaultConfig(),
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &apiFixture{router: service.Router(), db: database}
}

func (f *apiFixture) seed(t *testing.T, query string, args ...any) {
	t.Helper()
	if _, err := f.db.Exec(query, args...); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	fx := newTestService(t)
	router := fx.router

	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d, want 200", rec.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	fx := newTestService(t)
	router := fx.router

	t.Run("valid rule", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/rules/validate", map[string]any{
			"id":   "r1",
			"when": map[string]any{"meta.dayOfWeek": map[string]any{"$in": []string{"Sat", "Sun"}}},
			"then": map[string]any{"visible": false},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("validate = %d, want 200", rec.Code)
		}
		var result rules.ValidationResult
		decodeBody(t, rec, &result)
		if !result.Valid {
			t.Errorf("result = %+v, want valid", result)
		}
	})

	t.Run("unknown operator reported with path", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/rules/validate", map[string]any{
			"id":   "r2",
			"when": map[string]any{"meta.day": map[string]any{"$frob": 1}},
			"then": map[string]any{},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("validate = %d, want 200", rec.Code)
		}
		var result rules.ValidationResult
		decodeBody(t, rec, &result)
		if result.Valid || len(result.Issues) == 0 {
			t.Errorf("result = %+v, want invalid with issues", result)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/rules/validate", bytes.NewReader([]byte("{nope")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("validate = %d, want 400", rec.Code)
		}
	})
}

func TestRuleCRUD(t *testing.T) {
	fx := newTestService(t)
	router := fx.router

	create := map[string]any{
		"name":    "weekend visibility",
		"scope":   "slide",
		"slideId": "s1",
		"enabled": true,
		"rule": map[string]any{
			"when": map[string]any{"meta.dayOfWeek": map[string]any{"$in": []string{"Sat", "Sun"}}},
			"then": map[string]any{"visible": false},
		},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/rules/", create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Fatal("create returned no id")
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/rules/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/rules/?scope=slide", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	var listed []json.RawMessage
	decodeBody(t, rec, &listed)
	if len(listed) != 1 {
		t.Errorf("list returned %d rules, want 1", len(listed))
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/rules/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/rules/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestCreateRule_RejectsInvalidRule(t *testing.T) {
	fx := newTestService(t)
	router := fx.router

	rec := doJSON(t, router, http.MethodPost, "/api/v1/rules/", map[string]any{
		"name":    "broken",
		"scope":   "slide",
		"enabled": true,
		"rule": map[string]any{
			"when": map[string]any{"meta.day": map[string]any{"$frob": 1}},
			"then": map[string]any{},
		},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("create = %d, want 422", rec.Code)
	}
	var result rules.ValidationResult
	decodeBody(t, rec, &result)
	if result.Valid {
		t.Error("422 body claims the rule is valid")
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	fx := newTestService(t)
	router := fx.router

	// The pinned clock falls on a Sunday.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/evaluate", map[string]any{
		"rules": []map[string]any{
			{
				"id":        "r1",
				"when":      map[string]any{"meta.dayOfWeek": map[string]any{"$in": []string{"Sat", "Sun"}}},
				"then":      map[string]any{"visible": false},
				"otherwise": map[string]any{"visible": true},
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Results []rules.EvaluationResult `json:"results"`
	}
	decodeBody(t, rec, &body)
	if len(body.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(body.Results))
	}
	if !body.Results[0].Matched || body.Results[0].Outcome["visible"] != false {
		t.Errorf("result = %+v, want matched with visible=false", body.Results[0])
	}

	// An explicit weekday date flips the rule to its otherwise branch.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/evaluate", map[string]any{
		"date": "2026-08-26",
		"rules": []map[string]any{
			{
				"id":        "r1",
				"when":      map[string]any{"meta.dayOfWeek": map[string]any{"$in": []string{"Sat", "Sun"}}},
				"then":      map[string]any{"visible": false},
				"otherwise": map[string]any{"visible": true},
			},
		},
	})
	decodeBody(t, rec, &body)
	if body.Results[0].Matched || body.Results[0].Outcome["visible"] != true {
		t.Errorf("weekday result = %+v, want unmatched with visible=true", body.Results[0])
	}
}

func TestEvaluateEndpoint_IDLessRulesStayIndependent(t *testing.T) {
	fx := newTestService(t)
	router := fx.router

	// Both rules omit id; each must be evaluated against its own
	// condition rather than a shared compiled form.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/evaluate", map[string]any{
		"rules": []map[string]any{
			{
				"when": map[string]any{"meta.dayOfWeek": "Mon"},
				"then": map[string]any{"visible": true},
			},
			{
				"when": map[string]any{"meta.dayOfWeek": "Sun"},
				"then": map[string]any{"visible": true},
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Results []rules.EvaluationResult `json:"results"`
	}
	decodeBody(t, rec, &body)
	if len(body.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(body.Results))
	}
	if body.Results[0].Matched {
		t.Error("Monday rule matched on the pinned Sunday")
	}
	if !body.Results[1].Matched {
		t.Error("Sunday rule did not match on the pinned Sunday")
	}
}

func TestSlideVisibilityEndpoint(t *testing.T) {
	fx := newTestService(t)
	router := fx.router
	seed := func(query string, args ...any) { fx.seed(t, query, args...) }

	seed(`INSERT INTO presentations (id, name, type, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		"p1", "Sunday Kidase", "kidase", 1, "2026-08-30T00:00:00Z")
	seed(`INSERT INTO slides (id, presentation_id, slide_order, blocks_json) VALUES (?, ?, ?, ?)`,
		"s1", "p1", 1, `[]`)
	seed(`INSERT INTO slides (id, presentation_id, slide_order, blocks_json) VALUES (?, ?, ?, ?)`,
		"s2", "p1", 2, `[]`)
	seed(`INSERT INTO readings (id, line_id, misbak, priority, created_at) VALUES (?, ?, ?, ?, ?)`,
		"rd1", "line-1", "Psalm 117", 1, "2026-08-30T00:00:00Z")
	// Reading selection rule: rd1 applies on Sundays.
	seed(`INSERT INTO rule_definitions (id, name, scope, reading_id, rule_json, is_enabled, created_at)
	      VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"rr1", "sunday reading", "reading", "rd1",
		`{"when": {"meta.dayOfWeek": "Sun"}, "then": {}}`, 1, "2026-08-30T00:00:00Z")
	// Slide rule: hide s1 whenever a reading resolved.
	seed(`INSERT INTO rule_definitions (id, name, scope, presentation_id, slide_id, rule_json, is_enabled, created_at)
	      VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"sr1", "hide when reading", "slide", "p1", "s1",
		`{"when": {"meta.readingId": {"$exists": true}}, "then": {"visible": false, "reason": "$ref:meta.reading.misbak"}}`,
		1, "2026-08-30T00:00:00Z")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/presentations/p1/slides/visibility", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("visibility = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Slides []slideVisibility `json:"slides"`
	}
	decodeBody(t, rec, &body)
	if len(body.Slides) != 2 {
		t.Fatalf("got %d slides, want 2", len(body.Slides))
	}
	if body.Slides[0].SlideID != "s1" || body.Slides[0].Visible {
		t.Errorf("s1 = %+v, want hidden", body.Slides[0])
	}
	if body.Slides[0].Outcome["reason"] != "Psalm 117" {
		t.Errorf("s1 outcome = %v, want resolved reading ref", body.Slides[0].Outcome)
	}
	if !body.Slides[1].Visible {
		t.Errorf("s2 = %+v, want visible (no rules)", body.Slides[1])
	}
}
