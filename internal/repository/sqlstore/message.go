package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/clinicmatch/internal/models"
)

// CreateMessage inserts m. The unique screener index turns a second screener
// message for the same match into a no-op, reported as created == false.
func (s *Store) CreateMessage(ctx context.Context, m *models.Message) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("message is nil")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Kind == "" {
		m.Kind = models.MessageKindChat
	}
	if m.Created == 0 {
		m.Created = now()
	}
	res, err := s.sess().InsertBySql(
		`INSERT INTO messages (id, match_id, sender_id, content, kind, created) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		m.ID, m.MatchID, m.SenderID, m.Content, m.Kind, m.Created,
	).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListMessages(ctx context.Context, matchID string) ([]models.Message, error) {
	out := []models.Message{}
	_, err := s.sess().SelectBySql(
		`SELECT id, match_id, sender_id, content, kind, created FROM messages WHERE match_id = ? ORDER BY created ASC, id ASC`,
		matchID,
	).LoadContext(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}
