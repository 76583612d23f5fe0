package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TranscriptionSession represents a persisted processing result in the database.
// Rows are immutable after creation except for the action_items JSONB column,
// which is rewritten when a user toggles an item's completed flag.
type TranscriptionSession struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"user_id"`
	Transcription string          `json:"transcription"`
	Summary       string          `json:"summary"`
	Title         *string         `json:"title,omitempty"`
	ActionItems   json.RawMessage `json:"action_items,omitempty"` // JSONB, ordered array of ActionItem
	CreatedAt     time.Time       `json:"created_at"`
}

// Items decodes the action_items column. A missing or null column yields an
// empty slice rather than an error.
func (s *TranscriptionSession) Items() ([]ActionItem, error) {
	if len(s.ActionItems) == 0 {
		return []ActionItem{}, nil
	}
	var items []ActionItem
	if err := json.Unmarshal(s.ActionItems, &items); err != nil {
		return nil, err
	}
	return items, nil
}
