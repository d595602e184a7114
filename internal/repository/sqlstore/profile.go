package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/garnizeh/clinicmatch/internal/models"
)

const profileColumns = `id, email, role, name, bio, positions, workplace_types, location, availability, salary,
	is_urgent, is_auto_screener_active, screening_questions, is_admin, is_blocked, password_hash, created`

// UpsertProfile inserts p or updates the profile with the same email. Role,
// admin and blocked flags of an existing profile are left alone, and an empty
// password hash keeps the stored one.
func (s *Store) UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	if p == nil {
		return nil, fmt.Errorf("profile is nil")
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, fmt.Errorf("profile email is required")
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	positions := nonNil(p.Positions)
	workplaces := nonNil(p.WorkplaceTypes)
	questions := nonNil(p.ScreeningQuestions)

	q := `INSERT INTO profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			name = excluded.name,
			bio = excluded.bio,
			positions = excluded.positions,
			workplace_types = excluded.workplace_types,
			location = excluded.location,
			availability = excluded.availability,
			salary = excluded.salary,
			is_urgent = excluded.is_urgent,
			is_auto_screener_active = excluded.is_auto_screener_active,
			screening_questions = excluded.screening_questions,
			password_hash = CASE WHEN excluded.password_hash = '' THEN profiles.password_hash ELSE excluded.password_hash END`
	_, err := s.sess().InsertBySql(q,
		id, email, p.Role, p.Name, p.Bio, positions, workplaces, p.Location, p.Availability, p.Salary,
		p.IsUrgent, p.ScreenerEnabled, questions, p.IsAdmin, false, p.PasswordHash, now(),
	).ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	stored, err := s.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("upsert profile: row for %s vanished", email)
	}
	return stored, nil
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.getProfile(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) getProfile(ctx context.Context, q string, arg any) (*models.Profile, error) {
	var p models.Profile
	if err := s.sess().SelectBySql(q, arg).LoadOneContext(ctx, &p); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []models.Profile
	_, err := s.sess().SelectBySql(`SELECT `+profileColumns+` FROM profiles ORDER BY created DESC, id ASC LIMIT ? OFFSET ?`, limit, offset).
		LoadContext(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

func (s *Store) SetBlocked(ctx context.Context, id string, blocked bool) error {
	_, err := s.sess().UpdateBySql(`UPDATE profiles SET is_blocked = ? WHERE id = ?`, blocked, id).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("set blocked: %w", err)
	}
	return nil
}

func (s *Store) UpdateBio(ctx context.Context, id, bio string) error {
	_, err := s.sess().UpdateBySql(`UPDATE profiles SET bio = ? WHERE id = ?`, bio, id).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("update bio: %w", err)
	}
	return nil
}

func (s *Store) FeedCandidates(ctx context.Context, viewerID string, role models.Role, location string, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + profileColumns + ` FROM profiles p
		WHERE p.role = ? AND p.location = ? AND p.is_blocked = ? AND p.id <> ?
		AND NOT EXISTS (SELECT 1 FROM swipes s WHERE s.swiper_id = ? AND s.swiped_id = p.id)
		ORDER BY p.is_urgent DESC, p.created DESC, p.id ASC
		LIMIT ?`
	var out []models.Profile
	if _, err := s.sess().SelectBySql(q, role, location, false, viewerID, viewerID, limit).LoadContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("feed candidates: %w", err)
	}
	return out, nil
}

func nonNil(l models.StringList) models.StringList {
	if l == nil {
		return models.StringList{}
	}
	return l
}
