// Package config loads the schemasync configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/koba/schema-sync/internal/database"
	"github.com/koba/schema-sync/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Database database.Config `yaml:"database"`
	Log      LogConfig       `yaml:"log"`
	Display  DisplayConfig   `yaml:"display"`
	Migrate  MigrateConfig   `yaml:"migrate"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DisplayConfig holds plan rendering settings.
type DisplayConfig struct {
	Color bool   `yaml:"color"`
	Style string `yaml:"style"` // chroma style used for SQL
}

// MigrateConfig holds defaults for planning and applying.
type MigrateConfig struct {
	Transaction bool   `yaml:"transaction"`
	Definer     string `yaml:"definer,omitempty"`
	TablePrefix string `yaml:"table_prefix,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Display: DisplayConfig{
			Color: true,
			Style: "monokai",
		},
		Migrate: MigrateConfig{
			Transaction: true,
		},
	}
}

// DefaultPath returns ~/.config/schemasync/config.yaml or its platform
// equivalent.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "schemasync", "config.yaml"), nil
}

// Load reads a Config from the YAML file at path and applies the DB_*
// environment overrides. If the file does not exist, the defaults are
// used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Database.ApplyEnv()
	return cfg, nil
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Logging resolves the log section into logger settings.
func (c *Config) Logging() (logging.Level, logging.Format, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return 0, 0, fmt.Errorf("log level: %w", err)
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return 0, 0, fmt.Errorf("log format: %w", err)
	}
	return level, format, nil
}
