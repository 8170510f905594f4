package parser

import (
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

const usersTableSQL = "CREATE TABLE `users` /* accounts */ (" +
	"`id` integer NOT NULL PRIMARY KEY AUTOINCREMENT," +
	"`email` text COLLATE NOCASE NOT NULL /* login */," +
	"`score` real DEFAULT 0," +
	"`nick` varchar(20))"

const usersIndexSQL = "CREATE UNIQUE INDEX `users_email` ON `users` (`email`) /* unique login */"

func TestParseSQLiteTable(t *testing.T) {
	got, err := ParseSQLiteSchema(usersTableSQL, []string{usersIndexSQL})
	if err != nil {
		t.Fatalf("ParseSQLiteSchema() error = %v", err)
	}
	want := &schema.SQLiteTable{
		Name:   "users",
		Status: schema.SQLiteStatus{Comment: "accounts"},
		Fields: []*schema.SQLiteField{
			{Name: "id", Type: "integer", AutoIncrement: true},
			{Name: "email", Type: "text", Collate: "nocase", Comment: "login"},
			{Name: "score", Type: "real", Nullable: true, Default: schema.ValueDefault("0")},
			{Name: "nick", Type: "text", Nullable: true, Collate: "binary"},
		},
		Indexes: []*schema.SQLiteIndex{
			{Name: "PRIMARY", Fields: []string{"id"}},
			{Name: "users_email", Fields: []string{"email"}, Unique: true, Comment: "unique login"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("table mismatch:\n got %s\nwant %s", got.CreateSQL("users"), want.CreateSQL("users"))
	}
}

func TestParseSQLiteTableRoundTrip(t *testing.T) {
	first, err := ParseSQLiteSchema(usersTableSQL, []string{usersIndexSQL})
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseSQLiteSchema(first.CreateSQL(first.Name), first.IndexSQL())
	if err != nil {
		t.Fatalf("reparse error = %v\n%s", err, first.CreateSQL(first.Name))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reparse changed the table:\n%s\n%s", first.CreateSQL(first.Name), second.CreateSQL(second.Name))
	}
}

func TestParseSQLiteCompositePrimary(t *testing.T) {
	sql := `CREATE TABLE "pairs" (a integer NOT NULL, b text NOT NULL DEFAULT 'x', PRIMARY KEY (a, b DESC) /* pair */) WITHOUT ROWID`
	got, err := ParseSQLiteTable(sql)
	if err != nil {
		t.Fatalf("ParseSQLiteTable() error = %v", err)
	}
	if !got.Status.WithoutRowID {
		t.Error("WITHOUT ROWID not recognized")
	}
	primary := got.Index(schema.PrimaryKey)
	if primary == nil || !reflect.DeepEqual(primary.Fields, []string{"a", "b"}) || primary.Comment != "pair" {
		t.Fatalf("primary = %+v", primary)
	}
	want := "CREATE TABLE IF NOT EXISTS `pairs` (`a` integer NOT NULL,`b` text COLLATE binary NOT NULL DEFAULT 'x',PRIMARY KEY (`a`,`b`) /* pair */) WITHOUT ROWID"
	if s := got.CreateSQL("pairs"); s != want {
		t.Errorf("CreateSQL() =\n%s\nwant\n%s", s, want)
	}
}

func TestParseSQLiteDefaults(t *testing.T) {
	got, err := ParseSQLiteTable("CREATE TABLE t (a text DEFAULT NULL, b integer NOT NULL DEFAULT -1, c text, d real DEFAULT 2.5e3)")
	if err != nil {
		t.Fatalf("ParseSQLiteTable() error = %v", err)
	}
	if !got.Field("a").Default.IsNull() {
		t.Errorf("a default = %v, want NULL", got.Field("a").Default)
	}
	if v, ok := got.Field("b").Default.Value(); !ok || v != "-1" {
		t.Errorf("b default = %v, want -1", got.Field("b").Default)
	}
	if !got.Field("c").Default.IsNone() {
		t.Errorf("c default = %v, want none", got.Field("c").Default)
	}
	if v, ok := got.Field("d").Default.Value(); !ok || v != "2.5e3" {
		t.Errorf("d default = %v, want 2.5e3", got.Field("d").Default)
	}

	again, err := ParseSQLiteTable(got.CreateSQL(got.Name))
	if err != nil {
		t.Fatalf("reparse error = %v\n%s", err, got.CreateSQL(got.Name))
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		if !reflect.DeepEqual(again.Field(name).Default, got.Field(name).Default) {
			t.Errorf("%s default after reparse = %v, want %v", name, again.Field(name).Default, got.Field(name).Default)
		}
	}
}

func TestParseSQLiteExpressionDefaults(t *testing.T) {
	tests := []string{
		"CURRENT_TIMESTAMP",
		"current_date",
		"TRUE",
		"inf",
		"(1 + 1)",
		"(datetime('now'))",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseSQLiteTable("CREATE TABLE t (id integer, created text DEFAULT " + expr + ")")
			if !errors.Is(err, apperrors.ErrUnsupported) {
				t.Errorf("error = %v, want %v", err, apperrors.ErrUnsupported)
			}
		})
	}
}

func TestParseSQLiteIndexComment(t *testing.T) {
	for _, sql := range []string{
		"CREATE INDEX `by_nick` /* lookup */ ON `users` (`nick`)",
		"CREATE INDEX `by_nick` ON `users` (`nick`) /* lookup */",
	} {
		got, err := ParseSQLiteSchema(usersTableSQL, []string{sql})
		if err != nil {
			t.Fatalf("ParseSQLiteSchema(%q) error = %v", sql, err)
		}
		idx := got.Index("by_nick")
		if idx == nil || idx.Comment != "lookup" {
			t.Errorf("index from %q = %+v, want comment lookup", sql, idx)
		}
	}
}

func TestParseSQLiteErrors(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		index string
		want  error
	}{
		{name: "unknown type", sql: "CREATE TABLE t (a json)", want: apperrors.ErrUnsupported},
		{name: "foreign key", sql: "CREATE TABLE t (a integer, FOREIGN KEY (a) REFERENCES u (id))", want: apperrors.ErrUnsupported},
		{name: "expression default", sql: "CREATE TABLE t (a integer DEFAULT (1 + 1))", want: apperrors.ErrUnsupported},
		{name: "two primary keys", sql: "CREATE TABLE t (a integer PRIMARY KEY, b integer, PRIMARY KEY (b))", want: apperrors.ErrInvalidInput},
		{name: "unterminated", sql: "CREATE TABLE t (a integer", want: apperrors.ErrParse},
		{name: "autoincrement on text", sql: "CREATE TABLE t (a text PRIMARY KEY AUTOINCREMENT)", want: apperrors.ErrInvalidInput},
		{name: "index on other table", sql: "CREATE TABLE t (a integer)", index: "CREATE INDEX i ON u (a)", want: apperrors.ErrInvalidInput},
		{name: "partial index", sql: "CREATE TABLE t (a integer)", index: "CREATE INDEX i ON t (a) WHERE a > 0", want: apperrors.ErrUnsupported},
		{name: "index on unknown column", sql: "CREATE TABLE t (a integer)", index: "CREATE INDEX i ON t (b)", want: apperrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var indexes []string
			if tt.index != "" {
				indexes = []string{tt.index}
			}
			_, err := ParseSQLiteSchema(tt.sql, indexes)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
