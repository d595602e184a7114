package sqlstore

import (
	"context"
	"fmt"

	"github.com/garnizeh/clinicmatch/internal/models"
)

const templateColumns = `name, version, template_text, metadata, created, updated`

func (s *Store) CreateTemplate(ctx context.Context, name, version, templateText string, metadata *string) error {
	ts := now()
	_, err := s.sess().InsertBySql(
		`INSERT INTO ai_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, version) DO UPDATE SET template_text = excluded.template_text, metadata = excluded.metadata, updated = excluded.updated`,
		name, version, templateText, metadata, ts, ts,
	).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert template %s:%s: %w", name, version, err)
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	var t models.Template
	err := s.sess().SelectBySql(`SELECT `+templateColumns+` FROM ai_templates WHERE name = ? AND version = ?`, name, version).
		LoadOneContext(ctx, &t)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	out := []models.Template{}
	if _, err := s.sess().SelectBySql(`SELECT `+templateColumns+` FROM ai_templates ORDER BY name, version`).LoadContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}
