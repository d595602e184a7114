package db_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	dbfs "github.com/garnizeh/clinicmatch/db"
	"github.com/garnizeh/clinicmatch/internal/config"
	"github.com/garnizeh/clinicmatch/internal/db"
)

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "migrate.db"), nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	// Run again to ensure idempotency
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	if err := d.GetConn().QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("scan schema_migrations count: %v", err)
	}
	if count < 1 {
		t.Fatalf("expected at least 1 migration recorded, got %d", count)
	}

	for _, table := range []string{"profiles", "swipes", "matches", "messages", "ai_templates", "jobs", "dead_letter_jobs"} {
		var name string
		row := d.GetConn().QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table)
		if err := row.Scan(&name); err != nil {
			t.Fatalf("expected %s table exists: %v", table, err)
		}
	}

	// seeds are applied once, keyed by (name, version)
	var templates int
	if err := d.GetConn().QueryRowContext(ctx, `SELECT COUNT(1) FROM ai_templates WHERE version = 'v1'`).Scan(&templates); err != nil {
		t.Fatalf("count templates: %v", err)
	}
	if templates != 2 {
		t.Fatalf("expected 2 seeded templates, got %d", templates)
	}
}

func TestMigrate_SeedDoesNotOverwriteEdits(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "seed.db"), nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if _, err := d.Exec(ctx, `UPDATE ai_templates SET template_text = ? WHERE name = ? AND version = ?`, "edited", "bio", "v1"); err != nil {
		t.Fatalf("edit template: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var text string
	if err := d.GetConn().QueryRowContext(ctx, `SELECT template_text FROM ai_templates WHERE name = 'bio' AND version = 'v1'`).Scan(&text); err != nil {
		t.Fatalf("read template: %v", err)
	}
	if text != "edited" {
		t.Fatalf("seed overwrote edited template: %q", text)
	}
}

// TestMigrateOnStart_TempWorkdir drives the same path cmd/server takes: config
// file -> Validate -> New -> Migrate.
func TestMigrateOnStart_TempWorkdir(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfgY := "addr: \":0\"\n" +
		"migrate_on_start: true\n" +
		"database:\n  driver: sqlite\n  dsn: '" + dbPath + "'\n" +
		"ai:\n  model: \"test-model\"\n"

	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfgY), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// allow insecure default JWTSecret for this test
	t.Setenv("CLINICMATCH_ENV", "development")
	t.Setenv("CLINICMATCH_JWT_SECRET", "")

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("expected migrate_on_start to be true")
	}

	d, err := db.New(ctx, cfg.Database.Driver, cfg.Database.DSN, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file at %s: %v", dbPath, err)
	}
}
