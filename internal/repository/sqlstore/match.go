package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/clinicmatch/internal/models"
)

const matchColumns = `id, user_one_id, user_two_id, created`

// CreateMatch inserts the match for the pair {a, b} unless it exists and
// then reads the stored row back. Zero affected rows means another caller
// created it first; both callers end up with the same row.
func (s *Store) CreateMatch(ctx context.Context, a, b string) (*models.Match, bool, error) {
	if a == b {
		return nil, false, fmt.Errorf("create match: a profile cannot match itself")
	}
	one, two := a, b
	if two < one {
		one, two = two, one
	}

	res, err := s.sess().InsertBySql(
		`INSERT INTO matches (`+matchColumns+`) VALUES (?, ?, ?, ?) ON CONFLICT (user_one_id, user_two_id) DO NOTHING`,
		uuid.NewString(), one, two, now(),
	).ExecContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("insert match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert match: %w", err)
	}

	var m models.Match
	err = s.sess().SelectBySql(`SELECT `+matchColumns+` FROM matches WHERE user_one_id = ? AND user_two_id = ?`, one, two).
		LoadOneContext(ctx, &m)
	if err != nil {
		return nil, false, fmt.Errorf("read back match: %w", err)
	}
	return &m, n > 0, nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	if err := s.sess().SelectBySql(`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id).LoadOneContext(ctx, &m); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return &m, nil
}

// ListMatchesForProfile returns profileID's matches, newest first, each with
// the counterpart's public details.
func (s *Store) ListMatchesForProfile(ctx context.Context, profileID string) ([]models.MatchSummary, error) {
	q := `SELECT m.id AS match_id, p.id AS profile_id, p.name, p.positions, p.location, m.created
		FROM matches m
		JOIN profiles p ON p.id = CASE WHEN m.user_one_id = ? THEN m.user_two_id ELSE m.user_one_id END
		WHERE m.user_one_id = ? OR m.user_two_id = ?
		ORDER BY m.created DESC, m.id ASC`
	out := []models.MatchSummary{}
	if _, err := s.sess().SelectBySql(q, profileID, profileID, profileID).LoadContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out, nil
}
