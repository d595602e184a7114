// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	dbfs "github.com/garnizeh/clinicmatch/db"
	"github.com/garnizeh/clinicmatch/internal/db"
	"github.com/garnizeh/clinicmatch/internal/models"
	"github.com/garnizeh/clinicmatch/internal/repository/sqlstore"
)

// NewStore opens a migrated SQLite database under t.TempDir and closes it
// when the test ends.
func NewStore(t testing.TB) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()

	d, err := db.New(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlstore.New(d, nil)
}

// Profile inserts a profile with sensible defaults and returns the stored row.
func Profile(t testing.TB, s *sqlstore.Store, email string, role models.Role, mutate ...func(*models.Profile)) *models.Profile {
	t.Helper()
	p := &models.Profile{
		Email:    email,
		Role:     role,
		Name:     fmt.Sprintf("%s %s", role, email),
		Location: "Lisbon",
	}
	for _, m := range mutate {
		m(p)
	}
	stored, err := s.UpsertProfile(context.Background(), p)
	if err != nil {
		t.Fatalf("upsert profile %s: %v", email, err)
	}
	return stored
}
