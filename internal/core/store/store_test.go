package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kidase-app/kidase-rules/internal/core/db"
	"github.com/kidase-app/kidase-rules/internal/rules"
	"github.com/kidase-app/kidase-rules/internal/types"
)

func openTestDB(t *testing.T) *db.Queries {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
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
	return queries
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func TestRuleStore_CRUD(t *testing.T) {
	queries := openTestDB(t)
	engine := rules.NewEngine(rules.Options{})
	rulesStore := NewRuleStore(queries, engine)

	record := &RuleRecord{
		Name:      "hide on weekends",
		Scope:     types.ScopeSlide,
		SlideID:   nullStr("slide-1"),
		RuleJSON:  `{"id": "", "when": {"meta.dayOfWeek": {"$in": ["Sat", "Sun"]}}, "then": {"visible": false}}`,
		IsEnabled: true,
	}
	if err := rulesStore.Create(record); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if record.ID == "" {
		t.Fatal("Create did not assign an id")
	}

	got, err := rulesStore.Get(record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "hide on weekends" || got.Scope != types.ScopeSlide {
		t.Errorf("Get returned %+v", got)
	}

	entry, err := got.Entry()
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if entry.ID != record.ID {
		t.Errorf("entry id = %s, want row id %s", entry.ID, record.ID)
	}
	if entry.Name != "hide on weekends" {
		t.Errorf("entry name = %s, want row name", entry.Name)
	}

	got.Name = "hide on weekends v2"
	if err := rulesStore.Update(got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	listed, err := rulesStore.ListEnabled(types.ScopeSlide)
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "hide on weekends v2" {
		t.Errorf("ListEnabled = %+v, want the updated rule", listed)
	}

	if err := rulesStore.Delete(record.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := rulesStore.Get(record.ID); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("Get after delete = %v, want ErrRuleNotFound", err)
	}
	if err := rulesStore.Delete(record.ID); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("second Delete = %v, want ErrRuleNotFound", err)
	}
}

func TestRuleStore_UpdateInvalidatesEngineCache(t *testing.T) {
	queries := openTestDB(t)
	engine := rules.NewEngine(rules.Options{})
	rulesStore := NewRuleStore(queries, engine)
	ctx := &rules.Context{Meta: map[string]any{"dayOfWeek": "Sun"}}

	record := &RuleRecord{
		Name:      "sunday",
		Scope:     types.ScopePresentation,
		RuleJSON:  `{"when": {"meta.dayOfWeek": "Sun"}, "then": {"visible": true}}`,
		IsEnabled: true,
	}
	if err := rulesStore.Create(record); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stored, err := rulesStore.Get(record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	entry, err := stored.Entry()
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	result, err := engine.EvaluateRule(entry, ctx)
	if err != nil {
		t.Fatalf("EvaluateRule: %v", err)
	}
	if !result.Matched {
		t.Fatal("rule did not match before the edit")
	}

	// Flip the condition through the store. Update must invalidate, so
	// the next evaluation sees the new condition instead of the cached
	// compiled form.
	stored.RuleJSON = `{"when": {"meta.dayOfWeek": "Mon"}, "then": {"visible": true}}`
	if err := rulesStore.Update(stored); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fresh, err := rulesStore.Get(record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	entry, err = fresh.Entry()
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	result, err = engine.EvaluateRule(entry, ctx)
	if err != nil {
		t.Fatalf("EvaluateRule: %v", err)
	}
	if result.Matched {
		t.Error("edited rule still matched through the stale cached form")
	}
}

func TestReadingStore_Candidates(t *testing.T) {
	queries := openTestDB(t)
	engine := rules.NewEngine(rules.Options{})
	rulesStore := NewRuleStore(queries, engine)
	readingStore := NewReadingStore(queries)

	high := &ReadingRecord{
		LineID:   "line-high",
		Misbak:   nullStr("Psalm 117"),
		Priority: 1,
	}
	low := &ReadingRecord{
		LineID:   "line-low",
		Misbak:   nullStr("Psalm 23"),
		Priority: 5,
	}
	for _, r := range []*ReadingRecord{low, high} {
		if err := readingStore.Create(r); err != nil {
			t.Fatalf("Create reading: %v", err)
		}
	}

	rule := &RuleRecord{
		Name:      "high on sundays",
		Scope:     types.ScopeReading,
		ReadingID: nullStr(string(high.ID)),
		RuleJSON:  `{"when": {"meta.dayOfWeek": "Sun"}, "then": {}}`,
		IsEnabled: true,
	}
	if err := rulesStore.Create(rule); err != nil {
		t.Fatalf("Create rule: %v", err)
	}

	candidates, err := readingStore.Candidates(rulesStore)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	// list-readings orders by priority, so the high-priority reading
	// with its one rule comes first.
	if candidates[0].Reading.ID != high.ID || len(candidates[0].Rules) != 1 {
		t.Errorf("first candidate = %+v", candidates[0])
	}
	if len(candidates[1].Rules) != 0 {
		t.Errorf("ruleless reading carried %d rules", len(candidates[1].Rules))
	}
	if candidates[0].Reading.Fields["misbak"] != "Psalm 117" {
		t.Errorf("lection field missing: %+v", candidates[0].Reading.Fields)
	}
	if _, present := candidates[0].Reading.Fields["wengel"]; present {
		t.Error("null lection column surfaced as a field")
	}
}

func TestPresentationStore(t *testing.T) {
	queries := openTestDB(t)
	pres := NewPresentationStore(queries)

	database := queries.DB()
	_, err := database.Exec(
		`INSERT INTO presentations (id, name, type, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		"p1", "Sunday Kidase", "kidase", 1, "2026-08-30T00:00:00Z")
	if err != nil {
		t.Fatalf("seed presentation: %v", err)
	}
	_, err = database.Exec(
		`INSERT INTO slides (id, presentation_id, slide_order, title_json, blocks_json) VALUES (?, ?, ?, ?, ?)`,
		"s1", "p1", 1, `{"lang1": "Kidan"}`, `[]`)
	if err != nil {
		t.Fatalf("seed slide: %v", err)
	}
	_, err = database.Exec(
		`INSERT INTO variables (id, presentation_id, name, value, value_lang2, value_lang4)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		"v1", "p1", "priest", "Abba Yohannes", "አባ ዮሐንስ", "Abba Yohannes IV")
	if err != nil {
		t.Fatalf("seed variable: %v", err)
	}

	record, err := pres.Get("p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap := record.Snapshot()
	if snap["name"] != "Sunday Kidase" || snap["isActive"] != true {
		t.Errorf("Snapshot = %v", snap)
	}

	slides, err := pres.Slides("p1")
	if err != nil {
		t.Fatalf("Slides: %v", err)
	}
	if len(slides) != 1 {
		t.Fatalf("got %d slides, want 1", len(slides))
	}
	slideSnap := slides[0].Snapshot()
	title, ok := slideSnap["title"].(map[string]any)
	if !ok || title["lang1"] != "Kidan" {
		t.Errorf("slide title snapshot = %v", slideSnap["title"])
	}

	vars, err := pres.Variables("p1")
	if err != nil {
		t.Fatalf("Variables: %v", err)
	}
	if len(vars) != 1 || vars[0].Name != "priest" {
		t.Errorf("Variables = %+v", vars)
	}
	if got := vars[0].ValueIn(2); got != "አባ ዮሐንስ" {
		t.Errorf("ValueIn(2) = %q, want the stored variant", got)
	}
	if got := vars[0].ValueIn(3); got != "Abba Yohannes" {
		t.Errorf("ValueIn(3) = %q, want fallback to the primary value", got)
	}
	if got := vars[0].ValueIn(4); got != "Abba Yohannes IV" {
		t.Errorf("ValueIn(4) = %q, want the stored variant", got)
	}

	if err := pres.SetSetting("language", "amharic"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := pres.SetSetting("language", "geez"); err != nil {
		t.Fatalf("SetSetting upsert: %v", err)
	}
	settings, err := pres.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if settings["language"] != "geez" {
		t.Errorf("settings = %v, want upserted value", settings)
	}
}
