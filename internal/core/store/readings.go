package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kidase-app/kidase-rules/internal/core/db"
	"github.com/kidase-app/kidase-rules/internal/liturgy"
	"github.com/kidase-app/kidase-rules/internal/types"
)

// ReadingRecord is a persisted reading candidate row. The lection columns
// are nullable; whichever are present become opaque context fields.
type ReadingRecord struct {
	ID                types.ReadingID `db:"id"`
	LineID            string          `db:"line_id"`
	ReadingType       sql.NullString  `db:"reading_type"`
	Misbak            sql.NullString  `db:"misbak"`
	Wengel            sql.NullString  `db:"wengel"`
	MessageStPaul     sql.NullString  `db:"message_st_paul"`
	MessageApostle    sql.NullString  `db:"message_apostle"`
	MessageBookOfActs sql.NullString  `db:"message_book_of_acts"`
	Evangelist        sql.NullString  `db:"evangelist"`
	Priority          int             `db:"priority"`
}

// Reading converts the row to the domain type. Null lections are omitted
// from Fields so $exists distinguishes absent from empty.
func (r *ReadingRecord) Reading() types.Reading {
	fields := make(map[string]any)
	for name, col := range map[string]sql.NullString{
		"misbak":            r.Misbak,
		"wengel":            r.Wengel,
		"messageStPaul":     r.MessageStPaul,
		"messageApostle":    r.MessageApostle,
		"messageBookOfActs": r.MessageBookOfActs,
		"evangelist":        r.Evangelist,
	} {
		if col.Valid {
			fields[name] = col.String
		}
	}
	return types.Reading{
		ID:       r.ID,
		LineID:   r.LineID,
		Type:     r.ReadingType.String,
		Priority: r.Priority,
		Fields:   fields,
	}
}

// ReadingStore persists reading candidates and their selection rules.
type ReadingStore struct {
	queries *db.Queries
}

func NewReadingStore(queries *db.Queries) *ReadingStore {
	return &ReadingStore{queries: queries}
}

// List returns all readings ordered by priority.
func (s *ReadingStore) List() ([]ReadingRecord, error) {
	var records []ReadingRecord
	if err := s.queries.Select("list-readings", &records); err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return records, nil
}

// Get returns one reading by id.
func (s *ReadingStore) Get(id types.ReadingID) (*ReadingRecord, error) {
	var record ReadingRecord
	if err := s.queries.Get("get-reading", &record, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reading %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("get reading: %w", err)
	}
	return &record, nil
}

// Create inserts a new reading candidate.
func (s *ReadingStore) Create(record *ReadingRecord) error {
	if record.ID == "" {
		record.ID = types.NewReadingID()
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)
	_, err := s.queries.Exec("insert-reading",
		string(record.ID), record.LineID, record.ReadingType,
		record.Misbak, record.Wengel,
		record.MessageStPaul, record.MessageApostle, record.MessageBookOfActs,
		record.Evangelist, record.Priority, createdAt)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Candidates joins readings with their enabled selection rules, ready for
// current-reading resolution. Readings without rules are still returned;
// they simply never match.
func (s *ReadingStore) Candidates(rules *RuleStore) ([]liturgy.Candidate, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}

	ruleRows, err := rules.ListEnabled(types.ScopeReading)
	if err != nil {
		return nil, err
	}

	byReading := make(map[types.ReadingID][]json.RawMessage)
	for _, row := range ruleRows {
		if !row.ReadingID.Valid {
			continue
		}
		id := types.ReadingID(row.ReadingID.String)
		byReading[id] = append(byReading[id], json.RawMessage(row.RuleJSON))
	}

	candidates := make([]liturgy.Candidate, 0, len(records))
	for _, record := range records {
		candidates = append(candidates, liturgy.Candidate{
			Reading: record.Reading(),
			Rules:   byReading[record.ID],
		})
	}
	return candidates, nil
}
