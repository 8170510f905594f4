package generator

import (
	"strings"
	"testing"
	"time"

	"github.com/koba/schema-sync/internal/diff"
	"github.com/koba/schema-sync/internal/schema"
)

func sqlitePlan(t *testing.T, def schema.Definition) *diff.Plan {
	t.Helper()
	obj, err := def.Object(schema.SQLite)
	if err != nil {
		t.Fatalf("Object() error = %v", err)
	}
	p, err := diff.Compare(obj, nil, diff.Options{})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	return p
}

func TestGenerateSQL(t *testing.T) {
	plan := sqlitePlan(t, schema.Definition{
		Name:   "notes",
		Fields: schema.FieldDefinitions{{Name: "body", Type: "text"}},
	})
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	got := GenerateSQL([]*diff.Plan{diff.NewPlan("empty"), plan}, Header{Target: "app.db", Source: "schema/", GeneratedAt: at})
	want := "-- Migration SQL for app.db from schema/\n" +
		"-- Generated at: 2026-10-19T12:00:00Z\n" +
		"\n" +
		"-- notes: CREATE\n" +
		"-- + CREATE TABLE IF NOT EXISTS `notes` (\n" +
		"-- +   `body` text COLLATE binary NOT NULL\n" +
		"-- + )\n" +
		"CREATE TABLE IF NOT EXISTS `notes` (`body` text COLLATE binary NOT NULL);\n"
	if got != want {
		t.Errorf("GenerateSQL() =\n%s\nwant\n%s", got, want)
	}
}

func TestGenerateSQLNoDifferences(t *testing.T) {
	got := GenerateSQL([]*diff.Plan{diff.NewPlan("users")}, Header{Target: "app", GeneratedAt: time.Unix(0, 0).UTC()})
	if !strings.HasSuffix(got, "\n-- No differences found.\n") {
		t.Errorf("GenerateSQL() = %q", got)
	}
	if strings.Contains(got, " from ") {
		t.Errorf("GenerateSQL() mentions a source: %q", got)
	}
}
