package types

import (
	"github.com/google/uuid"
)

// RuleID identifies a persisted rule. It is the AST cache key, so it must
// stay stable across edits to the same rule; callers invalidate the cache
// explicitly when rule content changes.
type RuleID string

// PresentationID identifies a presentation.
type PresentationID string

// SlideID identifies a slide within a presentation.
type SlideID string

// ReadingID identifies a candidate liturgical-reading record.
type ReadingID string

// NewRuleID generates a UUIDv7 rule identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewReadingID generates a UUIDv7 reading identifier.
func NewReadingID() ReadingID {
	return ReadingID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// ParseReadingID validates and converts a string to ReadingID.
func ParseReadingID(s string) (ReadingID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return ReadingID(s), nil
}
