package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/koba/schema-sync/internal/config"
	"github.com/koba/schema-sync/internal/database"
	"github.com/koba/schema-sync/internal/diff"
	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/generator"
	"github.com/koba/schema-sync/internal/logging"
	"github.com/koba/schema-sync/internal/migrate"
	"github.com/koba/schema-sync/internal/schema"
	"github.com/koba/schema-sync/internal/snapshot"
)

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write the default configuration to the --config path. When the DB_*
environment variables describe a complete connection they are recorded
in the database section.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", a.configPath)
			}
			cfg := config.DefaultConfig()
			db, err := database.LoadConfigFromEnv()
			switch {
			case err == nil:
				cfg.Database = db
			case errors.Is(err, apperrors.ErrConfig):
				logging.GetLogger().Debug("database section left empty", "reason", err)
			default:
				return err
			}
			if err := cfg.Save(a.configPath); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration to %s\n", a.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func (a *app) planCmd() *cobra.Command {
	var snapshotPath, output string
	cmd := &cobra.Command{
		Use:   "plan [definition files...]",
		Short: "Show the changes needed to reach the definitions",
		Long: `Compare JSON or YAML definition files, or the definitions in a snapshot,
with the live database and print the resulting plans.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(cmd.Context(), func(d database.Driver, m *migrate.Migrator) error {
				plans, err := a.plan(cmd.Context(), d, m, args, snapshotPath)
				if err != nil {
					return err
				}
				if err := a.render(cmd, plans); err != nil {
					return err
				}
				if output == "" {
					return nil
				}
				return a.writeScript(output, plans, args, snapshotPath)
			})
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Read the desired definitions from a snapshot file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the plans as a SQL script to this file")
	return cmd
}

func (a *app) applyCmd() *cobra.Command {
	var snapshotPath string
	var noTx bool
	cmd := &cobra.Command{
		Use:   "apply [definition files...]",
		Short: "Apply the changes needed to reach the definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(cmd.Context(), func(d database.Driver, m *migrate.Migrator) error {
				plans, err := a.plan(cmd.Context(), d, m, args, snapshotPath)
				if err != nil {
					return err
				}
				if err := a.render(cmd, plans); err != nil {
					return err
				}
				useTx := a.cfg.Migrate.Transaction && !noTx
				if err := m.Apply(cmd.Context(), plans, useTx); err != nil {
					return err
				}
				applied := 0
				for _, p := range plans {
					if !p.Empty() {
						applied++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d plan(s)\n", applied)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Read the desired definitions from a snapshot file")
	cmd.Flags().BoolVar(&noTx, "no-tx", false, "Do not wrap each plan in a transaction")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <table>",
		Short: "Print the definition of a live table or view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMigrator(cmd.Context(), func(d database.Driver, m *migrate.Migrator) error {
				obj, err := m.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, _, err := encodeDefinition(obj.Definition(), format)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var outputDir, format string
	cmd := &cobra.Command{
		Use:   "export [prefix]",
		Short: "Write the definitions of live tables to files",
		Long: `Describe every live table or view whose name starts with prefix (default:
migrate.table_prefix from the config) and write one definition file each.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := a.cfg.Migrate.TablePrefix
			if len(args) > 0 {
				prefix = args[0]
			}
			return a.withMigrator(cmd.Context(), func(d database.Driver, m *migrate.Migrator) error {
				defs, err := m.Export(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(outputDir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				for _, def := range defs {
					data, ext, err := encodeDefinition(def, format)
					if err != nil {
						return err
					}
					path := filepath.Join(outputDir, def.Name+ext)
					if err := os.WriteFile(path, data, 0o644); err != nil {
						return fmt.Errorf("failed to write %s: %w", path, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d definition(s) to %s\n", len(defs), outputDir)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "./schema", "Output directory for definition files")
	cmd.Flags().StringVar(&format, "format", "yaml", "File format: yaml or json")
	return cmd
}

func (a *app) snapshotCmd() *cobra.Command {
	var outputDir, prefix string
	cmd := &cobra.Command{
		Use:   "snapshot [name]",
		Short: "Record the live schema in a snapshot file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("prefix") {
				prefix = a.cfg.Migrate.TablePrefix
			}
			return a.withMigrator(cmd.Context(), func(d database.Driver, m *migrate.Migrator) error {
				defs, err := m.Export(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				path := filepath.Join(outputDir, snapshotFilename(args, a.target(), time.Now()))
				snap, err := snapshot.Create(cmd.Context(), path, d.Dialect(), defs)
				if err != nil {
					return fmt.Errorf("failed to create snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s created: %s (%d definitions)\n", snap.ID, path, len(defs))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "./snapshots", "Output directory for snapshots")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only record tables whose name starts with prefix")
	return cmd
}

// withMigrator connects to the configured database for the duration of fn.
func (a *app) withMigrator(ctx context.Context, fn func(database.Driver, *migrate.Migrator) error) error {
	driver, err := database.NewDriver(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	if err := driver.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer driver.Close()

	m := migrate.New(driver,
		migrate.WithLogger(logging.GetLogger()),
		migrate.WithDefiner(a.cfg.Migrate.Definer),
	)
	return fn(driver, m)
}

func (a *app) plan(ctx context.Context, d database.Driver, m *migrate.Migrator, files []string, snapshotPath string) ([]*diff.Plan, error) {
	var providers []migrate.Provider
	if snapshotPath != "" {
		snap, err := snapshot.Load(ctx, snapshotPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		if snap.Dialect != d.Dialect() {
			return nil, apperrors.NewUnsupported("snapshot",
				fmt.Sprintf("%s snapshot against a %s database", snap.Dialect, d.Dialect()))
		}
		for _, def := range snap.Definitions {
			providers = append(providers, migrate.FromDefinition(def, snap.Dialect))
		}
	}
	for _, file := range files {
		providers = append(providers, migrate.FromFile(file, d.Dialect()))
	}
	if len(providers) == 0 {
		return nil, errors.New("no definitions given: pass definition files or --snapshot")
	}
	return m.PlanAll(ctx, providers)
}

func (a *app) render(cmd *cobra.Command, plans []*diff.Plan) error {
	r := migrate.NewRenderer(migrate.RenderOptions{
		Color: a.cfg.Display.Color,
		Style: a.cfg.Display.Style,
	})
	return r.Render(cmd.OutOrStdout(), plans)
}

func (a *app) writeScript(path string, plans []*diff.Plan, files []string, snapshotPath string) error {
	sources := files
	if snapshotPath != "" {
		sources = append([]string{snapshotPath}, files...)
	}
	script := generator.GenerateSQL(plans, generator.Header{
		Target:      a.target(),
		Source:      strings.Join(sources, ", "),
		GeneratedAt: time.Now(),
	})
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// target names the configured database.
func (a *app) target() string {
	if a.cfg.Database.Database != "" {
		return a.cfg.Database.Database
	}
	return strings.TrimSuffix(filepath.Base(a.cfg.Database.File), filepath.Ext(a.cfg.Database.File))
}

// snapshotFilename uses the given name or "<database>-<timestamp>.db".
func snapshotFilename(args []string, database string, now time.Time) string {
	if len(args) > 0 {
		name := args[0]
		if !strings.HasSuffix(name, ".db") {
			name += ".db"
		}
		return name
	}
	return fmt.Sprintf("%s-%s.db", database, now.Format("2006-01-02-15-04-05"))
}

func encodeDefinition(def schema.Definition, format string) (data []byte, ext string, err error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		data, err = schema.EncodeYAML(def)
		ext = ".yaml"
	case "json":
		data, err = schema.EncodeJSON(def)
		if err == nil {
			data = append(data, '\n')
		}
		ext = ".json"
	default:
		return nil, "", apperrors.NewUnsupported("format", fmt.Sprintf("%q", format))
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode %s: %w", def.Name, err)
	}
	return data, ext, nil
}
