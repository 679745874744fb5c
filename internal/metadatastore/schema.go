// Package metadatastore is the durable Postgres-backed store for
// PrintJob, DocumentAccess, and Document records: indexed lookup,
// optimistic single-document updates, and the conditional-update
// fallback path the quota engine falls back to when the cache is
// unavailable.
package metadatastore

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
)

// Open opens a *sql.DB against the pgx/v5/stdlib driver and pings it.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the print_jobs, document_access, documents, and
// system_config tables if they do not already exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS print_jobs (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			source_key TEXT NOT NULL,
			metadata JSONB NOT NULL,
			mac TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			total_pages INTEGER NOT NULL,
			output JSONB,
			error JSONB,
			audit JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_print_jobs_status ON print_jobs(status, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_print_jobs_document ON print_jobs(document_id)`,
		`CREATE TABLE IF NOT EXISTS document_access (
			document_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			print_quota INTEGER NOT NULL DEFAULT 0,
			prints_used INTEGER NOT NULL DEFAULT 0,
			used_prints INTEGER NOT NULL DEFAULT 0,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			last_print_at TIMESTAMPTZ,
			PRIMARY KEY (document_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			blob_key TEXT NOT NULL,
			mime TEXT NOT NULL,
			color_mode TEXT NOT NULL DEFAULT 'RGB',
			export_version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS system_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'string',
			min_value TEXT,
			max_value TEXT,
			description TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_by TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
