// Package db embeds the SQL migrations and prompt-template seeds applied by
// internal/db.Migrate.
package db

import "embed"

// Migrations holds migrations/NNNN_name.sql, applied in lexical order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SeedFiles holds seed/template_<name>_<version>.txt prompt templates.
//
//go:embed seed/*.txt
var SeedFiles embed.FS
