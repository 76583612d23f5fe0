package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"audiototext/api-gateway/models"
)

const sessionsTable = "transcription_sessions"

var (
	// ErrSessionNotFound means no session with that id belongs to the
	// identity.
	ErrSessionNotFound = errors.New("transcription session not found")

	// ErrActionItemNotFound means the session exists but holds no item with
	// that id.
	ErrActionItemNotFound = errors.New("action item not found")
)

// Store persists and retrieves transcription sessions per identity. Rows are
// written only after a fully successful processing call and are immutable
// afterwards, except for action-item completion toggles.
type Store struct {
	db     *supa.Client
	logger *logrus.Logger
}

func New(db *supa.Client, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Save writes a new session at the head of the identity's history.
func (s *Store) Save(ctx context.Context, identity string, result *models.ProcessingResult) (*models.TranscriptionSession, error) {
	items, err := json.Marshal(result.ActionItems)
	if err != nil {
		return nil, fmt.Errorf("marshalling action items: %w", err)
	}

	session := models.TranscriptionSession{
		ID:            uuid.New(),
		UserID:        identity,
		Transcription: result.Transcription,
		Summary:       result.Summary,
		Title:         result.Title,
		ActionItems:   items,
		CreatedAt:     time.Now().UTC(),
	}

	body, _, err := s.db.From(sessionsTable).
		Insert(session, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("saving transcription session: %w", err)
	}

	var created []models.TranscriptionSession
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("unmarshalling saved session: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("session insert returned no rows")
	}

	s.logger.Infof("Transcription session %s saved for %s", created[0].ID, identity)
	return &created[0], nil
}

// List returns the identity's sessions, newest first.
func (s *Store) List(ctx context.Context, identity string) ([]models.TranscriptionSession, error) {
	body, _, err := s.db.From(sessionsTable).
		Select("*", "", false).
		Eq("user_id", identity).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing sessions for %s: %w", identity, err)
	}

	var sessions []models.TranscriptionSession
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshalling session list: %w", err)
	}
	return sessions, nil
}

// GetByID fetches one session, scoped to the identity that owns it.
func (s *Store) GetByID(ctx context.Context, identity, sessionID string) (*models.TranscriptionSession, error) {
	body, _, err := s.db.From(sessionsTable).
		Select("*", "", false).
		Eq("user_id", identity).
		Eq("id", sessionID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching session %s: %w", sessionID, err)
	}

	var sessions []models.TranscriptionSession
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshalling session %s: %w", sessionID, err)
	}
	if len(sessions) == 0 {
		return nil, ErrSessionNotFound
	}
	return &sessions[0], nil
}

// ToggleActionItem flips the completed flag of one action item and persists
// the rewritten action_items column. Item order is preserved; completed is
// the only field that changes.
func (s *Store) ToggleActionItem(ctx context.Context, identity, sessionID, itemID string) (*models.TranscriptionSession, error) {
	session, err := s.GetByID(ctx, identity, sessionID)
	if err != nil {
		return nil, err
	}

	items, err := session.Items()
	if err != nil {
		return nil, fmt.Errorf("decoding action items of session %s: %w", sessionID, err)
	}
	if !toggleItem(items, itemID) {
		return nil, ErrActionItemNotFound
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding action items: %w", err)
	}

	update := map[string]interface{}{
		"action_items": json.RawMessage(encoded),
	}
	_, _, err = s.db.From(sessionsTable).
		Update(update, "minimal", "").
		Eq("user_id", identity).
		Eq("id", sessionID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("updating action items of session %s: %w", sessionID, err)
	}

	session.ActionItems = encoded
	return session, nil
}

// toggleItem flips the matching item in place and reports whether it was
// found.
func toggleItem(items []models.ActionItem, itemID string) bool {
	for i := range items {
		if items[i].ID == itemID {
			items[i].Completed = !items[i].Completed
			return true
		}
	}
	return false
}
