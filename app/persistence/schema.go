package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// schemaVersion is bumped on any schema change, older databases are rejected with ErrSchemaMismatch
const schemaVersion = 1

const itemColumns = "id, status, payload, created_at, updated_at"

var schemaQueries = []string{
	`CREATE TABLE IF NOT EXISTS work_items (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		payload BLOB,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dependencies (
		dependent_id TEXT NOT NULL REFERENCES work_items(id),
		prerequisite_id TEXT NOT NULL REFERENCES work_items(id),
		PRIMARY KEY (dependent_id, prerequisite_id)
	) WITHOUT ROWID`,
	`CREATE INDEX IF NOT EXISTS idx_work_items_status ON work_items(status)`,
	`CREATE INDEX IF NOT EXISTS idx_dependencies_prerequisite ON dependencies(prerequisite_id)`,
	`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
}

// initSchema creates tables for a new database or verifies the version of an existing one
func initSchema(ctx context.Context, tx *sqlx.Tx) error {
	var tables int
	err := tx.GetContext(ctx, &tables, "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return storageErr(err, "check schema_version table")
	}

	if tables > 0 {
		var version int
		if err := tx.GetContext(ctx, &version, "SELECT version FROM schema_version LIMIT 1"); err != nil {
			return storageErr(err, "read schema version")
		}
		if version != schemaVersion {
			return errors.Wrapf(ErrSchemaMismatch, "database has version %d, expected %d", version, schemaVersion)
		}
		return nil
	}

	for _, query := range schemaQueries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return storageErr(err, "create schema")
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return storageErr(err, "record schema version")
	}
	return nil
}
