package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/parser"
	"github.com/koba/schema-sync/internal/schema"
)

// SQLite implements the Driver interface for SQLite
type SQLite struct {
	conn
	config Config
}

var _ Driver = (*SQLite)(nil)

// NewSQLite creates a new SQLite database connection
func NewSQLite(config Config) *SQLite {
	return &SQLite{config: config}
}

func (s *SQLite) Dialect() schema.Dialect { return schema.SQLite }

// Connect opens the database file. The pool is limited to one connection
// so that transactions, PRAGMAs and ":memory:" databases see one session.
func (s *SQLite) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.config.File)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping SQLite: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLite) QuoteIdentifier(name string) string {
	return schema.QuoteIdent(name)
}

var sqliteLikeEscaper = strings.NewReplacer("/", "//", "%", "/%", "_", "/_")

// EscapeLike escapes a LIKE pattern for use with ESCAPE '/'.
func (s *SQLite) EscapeLike(str string) string {
	return sqliteLikeEscaper.Replace(str)
}

// Tables returns all user tables in the database.
func (s *SQLite) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.Query(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite/_%' ESCAPE '/' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, row.String("name"))
	}
	return tables, nil
}

// ShowCreate returns the CREATE TABLE statement stored in sqlite_master.
func (s *SQLite) ShowCreate(ctx context.Context, name string) (string, error) {
	rows, err := s.Query(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return "", fmt.Errorf("failed to show create table %s: %w", name, err)
	}
	if len(rows) == 0 {
		return "", apperrors.NewNotFound("table", name)
	}
	return rows[0].String("sql"), nil
}

// Describe reads a table and its explicit indexes back into a validated
// schema object. Automatic indexes have no SQL and are skipped.
func (s *SQLite) Describe(ctx context.Context, name string) (*schema.Object, error) {
	create, err := s.ShowCreate(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := s.Query(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY rowid",
		name)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexes for %s: %w", name, err)
	}
	indexSQL := make([]string, 0, len(rows))
	for _, row := range rows {
		indexSQL = append(indexSQL, row.String("sql"))
	}

	t, err := parser.ParseSQLiteSchema(create, indexSQL)
	if err != nil {
		return nil, err
	}
	return schema.NewSQLiteTableObject(t), nil
}

// CurrentUser returns "": SQLite has no accounts.
func (s *SQLite) CurrentUser(ctx context.Context) (string, error) {
	return "", nil
}
