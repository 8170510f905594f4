package schema

import (
	"fmt"
	"strings"

	apperrors "github.com/koba/schema-sync/internal/errors"
)

// Dialect identifies the SQL engine family an object belongs to.
type Dialect int

const (
	MySQL Dialect = iota + 1
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	}
	if d == 0 {
		return ""
	}
	return fmt.Sprintf("dialect(%d)", int(d))
}

// ParseDialect maps a driver name onto a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return 0, apperrors.NewUnsupported("dialect", fmt.Sprintf("%q", s))
}

// MarshalText implements encoding.TextMarshaler.
func (d Dialect) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dialect) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	parsed, err := ParseDialect(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Kind is the type of schema object.
type Kind string

const (
	KindTable Kind = "table"
	KindView  Kind = "view"
)

// PrimaryKey is the reserved index name of a table's primary key.
const PrimaryKey = "PRIMARY"

// Object is a table or view of one dialect. Exactly one of the pointers
// matching Dialect and Kind is set.
type Object struct {
	Dialect     Dialect
	Kind        Kind
	MySQLTable  *MySQLTable
	MySQLView   *MySQLView
	SQLiteTable *SQLiteTable
}

// NewMySQLTableObject wraps t as a MySQL table object.
func NewMySQLTableObject(t *MySQLTable) *Object {
	return &Object{Dialect: MySQL, Kind: KindTable, MySQLTable: t}
}

// NewMySQLViewObject wraps v as a MySQL view object.
func NewMySQLViewObject(v *MySQLView) *Object {
	return &Object{Dialect: MySQL, Kind: KindView, MySQLView: v}
}

// NewSQLiteTableObject wraps t as a SQLite table object.
func NewSQLiteTableObject(t *SQLiteTable) *Object {
	return &Object{Dialect: SQLite, Kind: KindTable, SQLiteTable: t}
}

// Name returns the table or view name.
func (o *Object) Name() string {
	switch {
	case o.MySQLTable != nil:
		return o.MySQLTable.Name
	case o.MySQLView != nil:
		return o.MySQLView.Name
	case o.SQLiteTable != nil:
		return o.SQLiteTable.Name
	}
	return ""
}

// Validate checks that the variant matches Dialect and Kind and that the
// wrapped object holds its invariants.
func (o *Object) Validate() error {
	switch {
	case o.Dialect == MySQL && o.Kind == KindTable && o.MySQLTable != nil:
		return o.MySQLTable.Validate()
	case o.Dialect == MySQL && o.Kind == KindView && o.MySQLView != nil:
		return o.MySQLView.Validate()
	case o.Dialect == SQLite && o.Kind == KindTable && o.SQLiteTable != nil:
		return o.SQLiteTable.Validate()
	}
	return apperrors.NewUnsupported("schema object", fmt.Sprintf("%s %s", o.Dialect, o.Kind))
}

// QuoteIdent quotes a table, column or index name with backticks. Both
// dialects accept backtick quoting.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteString renders s as a single-quoted SQL literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdent(name)
	}
	return strings.Join(quoted, ",")
}
