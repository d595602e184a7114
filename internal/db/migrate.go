package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Migrate applies migrations and optional seed files found in the repository.
// It creates a `schema_migrations` table to track applied migrations and applies
// any SQL files in `db/migrations/` that have not yet been recorded. Prompt
// templates in `db/seed/` are inserted only when missing, so edits made
// through the API survive restarts.
func Migrate(ctx context.Context, d *DB, migrationFS embed.FS, seedFS embed.FS) error {
	// ensure migrations table exists
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied BIGINT NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	// embedded migrations are provided under "migrations/..." in the top-level db package
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	sess := d.Session()
	for _, fname := range files {
		// use filename (without extension) as migration version key
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		if err := sess.SelectBySql(`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version).LoadOneContext(ctx, &count); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := sess.InsertBySql(`INSERT INTO schema_migrations (version, applied) VALUES (?, ?)`, version, time.Now().UTC().Unix()).ExecContext(ctx); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
	}

	return seedTemplates(ctx, d, seedFS)
}

// seedTemplates loads seed/template_<name>_<version>.txt files; a missing seed dir is not an error.
func seedTemplates(ctx context.Context, d *DB, seedFS embed.FS) error {
	entries, err := fs.ReadDir(seedFS, "seed")
	if err != nil {
		return nil
	}

	now := time.Now().UTC().UnixMilli()
	for _, e := range entries {
		name, version, ok := parseTemplateFile(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		b, err := fs.ReadFile(seedFS, path.Join("seed", e.Name()))
		if err != nil {
			return fmt.Errorf("read seed %s: %w", e.Name(), err)
		}
		meta := `{"owner":"system","source":"seed"}`
		_, err = d.Session().InsertBySql(
			`INSERT INTO ai_templates (name, version, template_text, metadata, created, updated) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (name, version) DO NOTHING`,
			name, version, string(b), meta, now, now,
		).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("seed template %s:%s: %w", name, version, err)
		}
	}

	return nil
}

func parseTemplateFile(fname string) (name, version string, ok bool) {
	base, found := strings.CutSuffix(fname, ".txt")
	if !found {
		return "", "", false
	}
	base, found = strings.CutPrefix(base, "template_")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(base, "_")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	return base[:i], base[i+1:], true
}
