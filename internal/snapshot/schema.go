package snapshot

import (
	"context"
	"database/sql"
)

const (
	// SQLite schema for storing snapshots
	createMetadataTable = `
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	createDefinitionsTable = `
		CREATE TABLE IF NOT EXISTS definitions (
			position INTEGER NOT NULL,
			name TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			definition_json TEXT NOT NULL,
			fingerprint TEXT NOT NULL
		);
	`
)

// Metadata keys
const (
	metaID        = "snapshot_id"
	metaCreatedAt = "created_at"
	metaDialect   = "dialect"
	metaVersion   = "format_version"
)

// formatVersion is bumped when the table layout changes.
const formatVersion = "1"

// initializeSchema creates the necessary tables in the SQLite snapshot database
func initializeSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{createMetadataTable, createDefinitionsTable} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
