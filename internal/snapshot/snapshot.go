// Package snapshot stores a set of schema definitions in a SQLite file so
// that a database layout can be recorded and replayed elsewhere.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

// Snapshot is a recorded set of definitions of one dialect.
type Snapshot struct {
	ID          string
	CreatedAt   time.Time
	Dialect     schema.Dialect
	Definitions []schema.Definition
}

// Fingerprint returns the hex blake3 digest of an encoded definition.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Create writes defs to a new snapshot file at path, replacing any
// existing file.
func Create(ctx context.Context, path string, dialect schema.Dialect, defs []schema.Definition) (*Snapshot, error) {
	// Ensure output directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Remove existing snapshot file if it exists
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing snapshot: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot database: %w", err)
	}
	defer db.Close()

	if err := initializeSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}

	snap := &Snapshot{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Dialect:     dialect,
		Definitions: defs,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	metadata := map[string]string{
		metaID:        snap.ID,
		metaCreatedAt: snap.CreatedAt.Format(time.RFC3339),
		metaDialect:   dialect.String(),
		metaVersion:   formatVersion,
	}
	for key, value := range metadata {
		if _, err := tx.ExecContext(ctx, "INSERT INTO metadata (key, value) VALUES (?, ?)", key, value); err != nil {
			return nil, fmt.Errorf("failed to insert metadata: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO definitions (position, name, kind, definition_json, fingerprint) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, def := range defs {
		if def.Dialect != 0 && def.Dialect != dialect {
			return nil, apperrors.NewUnsupported("snapshot",
				fmt.Sprintf("%s definition %s in a %s snapshot", def.Dialect, def.Name, dialect))
		}
		data, err := schema.EncodeJSON(def)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", def.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, i, def.Name, string(def.Type), string(data), Fingerprint(data)); err != nil {
			return nil, fmt.Errorf("failed to insert definition %s: %w", def.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return snap, nil
}

// Load reads a snapshot back. Every definition is checked against its
// stored fingerprint.
func Load(ctx context.Context, path string) (*Snapshot, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperrors.NewNotFound("snapshot", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	defer db.Close()

	metadata, err := loadMetadata(ctx, db)
	if err != nil {
		return nil, err
	}
	if v := metadata[metaVersion]; v != formatVersion {
		return nil, apperrors.NewUnsupported("snapshot format", fmt.Sprintf("version %q", v))
	}

	snap := &Snapshot{ID: metadata[metaID]}
	if snap.CreatedAt, err = time.Parse(time.RFC3339, metadata[metaCreatedAt]); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot time: %w", err)
	}
	if snap.Dialect, err = schema.ParseDialect(metadata[metaDialect]); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT name, definition_json, fingerprint FROM definitions ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, data, fingerprint string
		if err := rows.Scan(&name, &data, &fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		if Fingerprint([]byte(data)) != fingerprint {
			return nil, apperrors.NewValidation(name, "", "snapshot fingerprint mismatch")
		}
		def, err := schema.DecodeJSON([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", name, err)
		}
		snap.Definitions = append(snap.Definitions, def)
	}
	return snap, rows.Err()
}

func loadMetadata(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		metadata[key] = value
	}
	return metadata, rows.Err()
}
