// Package database connects to live MySQL and SQLite databases, reads
// their schema objects back and executes migration statements.
package database

import (
	"context"
	"fmt"
	"os"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

// Config holds database connection configuration
type Config struct {
	Type     string `yaml:"type"` // "mysql" or "sqlite"
	Host     string `yaml:"host,omitempty"`
	Port     string `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	File     string `yaml:"file,omitempty"` // SQLite database path
}

// Row is one result row keyed by column name. Text and blob values are
// returned as strings, NULL as nil.
type Row map[string]any

// String returns the column as a string, "" for NULL or a missing column.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Driver is the capability surface the migration core needs from a live
// database. Begin, Commit and Rollback nest: only the outermost pair
// reaches the server.
type Driver interface {
	Dialect() schema.Dialect
	Connect(ctx context.Context) error
	Close() error
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	QuoteIdentifier(name string) string
	EscapeLike(s string) string
	Tables(ctx context.Context) ([]string, error)
	ShowCreate(ctx context.Context, name string) (string, error)
	Describe(ctx context.Context, name string) (*schema.Object, error)
	CurrentUser(ctx context.Context) (string, error)
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
}

// NewDriver creates a driver for the configured database type. The
// connection is not opened until Connect.
func NewDriver(config Config) (Driver, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	dialect, _ := config.Dialect()
	switch dialect {
	case schema.MySQL:
		return NewMySQL(config), nil
	case schema.SQLite:
		return NewSQLite(config), nil
	}
	return nil, apperrors.NewUnsupported("database type", config.Type)
}

// Dialect maps Type onto a schema dialect.
func (c Config) Dialect() (schema.Dialect, error) {
	if c.Type == "" {
		return 0, apperrors.NewConfig("DB_TYPE", "database type is required")
	}
	return schema.ParseDialect(c.Type)
}

// Validate reports the first missing connection parameter.
func (c Config) Validate() error {
	dialect, err := c.Dialect()
	if err != nil {
		return err
	}
	switch dialect {
	case schema.MySQL:
		if c.Database == "" {
			return apperrors.NewConfig("DB_NAME", "database name is required")
		}
	case schema.SQLite:
		if c.File == "" {
			return apperrors.NewConfig("DB_FILE", "database file is required")
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	dialect, err := c.Dialect()
	if err != nil || dialect != schema.MySQL {
		return
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == "" {
		c.Port = "3306"
	}
}

// ApplyEnv overrides fields with the DB_* environment variables that are
// set.
func (c *Config) ApplyEnv() {
	for key, field := range map[string]*string{
		"DB_TYPE":     &c.Type,
		"DB_HOST":     &c.Host,
		"DB_PORT":     &c.Port,
		"DB_NAME":     &c.Database,
		"DB_USER":     &c.User,
		"DB_PASSWORD": &c.Password,
		"DB_FILE":     &c.File,
	} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}

// LoadConfigFromEnv loads database configuration from the DB_* environment
// variables.
func LoadConfigFromEnv() (Config, error) {
	var config Config
	config.ApplyEnv()
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
