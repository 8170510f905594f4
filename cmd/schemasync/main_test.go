package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koba/schema-sync/internal/config"
	"github.com/koba/schema-sync/internal/schema"
	"github.com/koba/schema-sync/internal/snapshot"
)

const peopleYAML = `type: table
field:
  id:
    type: integer
    autoIncrement: true
  name:
    type: text
  age:
    type: integer
    nullable: true
index:
  PRIMARY:
    fields: [id]
  people_name:
    fields: [name]
`

type env struct {
	t      *testing.T
	dir    string
	config string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD"} {
		t.Setenv(key, "")
	}
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_FILE", filepath.Join(dir, "app.db"))
	return &env{t: t, dir: dir, config: filepath.Join(dir, "config.yaml")}
}

func (e *env) run(args ...string) string {
	e.t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config, "--no-color"}, args...))
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		e.t.Fatalf("schemasync %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func (e *env) write(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		e.t.Fatal(err)
	}
	return path
}

func TestPlanApplyRoundTrip(t *testing.T) {
	e := newEnv(t)
	people := e.write("people.yaml", peopleYAML)
	script := filepath.Join(e.dir, "migration.sql")

	out := e.run("plan", "--output", script, people)
	if !strings.Contains(out, "--------people--------") || !strings.Contains(out, "CREATE TABLE IF NOT EXISTS `people`") {
		t.Errorf("plan output:\n%s", out)
	}
	data, err := os.ReadFile(script)
	if err != nil {
		t.Fatalf("script not written: %v", err)
	}
	if !strings.Contains(string(data), "-- people: CREATE") || !strings.Contains(string(data), "CREATE INDEX `people_name` ON `people` (`name`);") {
		t.Errorf("script:\n%s", data)
	}

	if out := e.run("apply", people); !strings.Contains(out, "Applied 1 plan(s)") {
		t.Errorf("apply output:\n%s", out)
	}
	if out := e.run("plan", people); out != "No differences found.\n" {
		t.Errorf("plan after apply:\n%s", out)
	}

	out = e.run("show", "people", "--format", "json")
	if !strings.Contains(out, `"name": "people"`) || !strings.Contains(out, `"dialect": "sqlite"`) {
		t.Errorf("show output:\n%s", out)
	}
}

func TestExportAndSnapshot(t *testing.T) {
	e := newEnv(t)
	people := e.write("people.yaml", peopleYAML)
	e.run("apply", people)

	exportDir := filepath.Join(e.dir, "exported")
	if out := e.run("export", "--output-dir", exportDir); !strings.Contains(out, "Exported 1 definition(s)") {
		t.Errorf("export output:\n%s", out)
	}
	exported := filepath.Join(exportDir, "people.yaml")
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("export did not write people.yaml: %v", err)
	}
	if out := e.run("plan", exported); out != "No differences found.\n" {
		t.Errorf("plan of exported definition:\n%s", out)
	}

	snapDir := filepath.Join(e.dir, "snaps")
	e.run("snapshot", "baseline", "--output-dir", snapDir)
	snapPath := filepath.Join(snapDir, "baseline.db")
	snap, err := snapshot.Load(context.Background(), snapPath)
	if err != nil {
		t.Fatalf("snapshot.Load() error = %v", err)
	}
	if len(snap.Definitions) != 1 || snap.Definitions[0].Name != "people" {
		t.Errorf("snapshot definitions = %+v", snap.Definitions)
	}
	if out := e.run("plan", "--snapshot", snapPath); out != "No differences found.\n" {
		t.Errorf("plan from snapshot:\n%s", out)
	}
}

func TestSnapshotFilename(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 30, 5, 0, time.UTC)
	tests := []struct {
		args []string
		want string
	}{
		{nil, "app-2026-10-19-08-30-05.db"},
		{[]string{"baseline"}, "baseline.db"},
		{[]string{"baseline.db"}, "baseline.db"},
	}
	for _, tt := range tests {
		if got := snapshotFilename(tt.args, "app", now); got != tt.want {
			t.Errorf("snapshotFilename(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestEncodeDefinitionUnknownFormat(t *testing.T) {
	if _, _, err := encodeDefinition(schema.Definition{Name: "people"}, "xml"); err == nil {
		t.Error("encodeDefinition(xml) error = nil")
	}
}

func TestInit(t *testing.T) {
	e := newEnv(t)
	out := e.run("init")
	if !strings.Contains(out, "Wrote configuration to "+e.config) {
		t.Errorf("init output = %q", out)
	}
	cfg, err := config.Load(e.config)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.File != filepath.Join(e.dir, "app.db") {
		t.Errorf("database = %+v, want the DB_* values", cfg.Database)
	}
	data, err := os.ReadFile(e.config)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "type: sqlite") {
		t.Errorf("config file =\n%s\nwant the database section", data)
	}

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", e.config, "init"})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("second init succeeded, want an error for the existing file")
	}
	e.run("init", "--force")
}

func TestInitWithoutDatabaseEnv(t *testing.T) {
	e := newEnv(t)
	t.Setenv("DB_TYPE", "")
	e.run("init")
	data, err := os.ReadFile(e.config)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "level: warn") {
		t.Errorf("config file =\n%s\nwant the default log level", data)
	}
}
