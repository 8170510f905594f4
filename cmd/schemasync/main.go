package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koba/schema-sync/internal/config"
	"github.com/koba/schema-sync/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the flags and configuration shared by every command.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	defaultPath, err := config.DefaultPath()
	if err != nil {
		defaultPath = "schemasync.yaml"
	}

	rootCmd := &cobra.Command{
		Use:   "schemasync",
		Short: "Declarative schema migration for MySQL and SQLite",
		Long: `Compare table and view definitions with a live MySQL or SQLite database
and print or apply the DDL that brings the database in line.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", defaultPath, "Path to the configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(
		a.initCmd(),
		a.planCmd(),
		a.applyCmd(),
		a.showCmd(),
		a.exportCmd(),
		a.snapshotCmd(),
	)
	return rootCmd
}

// setup loads the configuration, lets flags override it and initializes
// the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.noColor {
		cfg.Display.Color = false
	}

	level, format, err := cfg.Logging()
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	a.cfg = cfg
	return nil
}
