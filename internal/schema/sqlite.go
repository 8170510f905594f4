package schema

import (
	"fmt"
	"strings"

	apperrors "github.com/koba/schema-sync/internal/errors"
)

// SQLite storage classes a column type is reduced to.
const (
	SQLiteInteger = "integer"
	SQLiteText    = "text"
	SQLiteReal    = "real"
	SQLiteBlob    = "blob"
)

var sqliteTypeAliases = map[string]string{
	"int":       SQLiteInteger,
	"integer":   SQLiteInteger,
	"tinyint":   SQLiteInteger,
	"smallint":  SQLiteInteger,
	"mediumint": SQLiteInteger,
	"bigint":    SQLiteInteger,
	"varchar":   SQLiteText,
	"char":      SQLiteText,
	"text":      SQLiteText,
	"double":    SQLiteReal,
	"float":     SQLiteReal,
	"real":      SQLiteReal,
	"blob":      SQLiteBlob,
}

var sqliteCollations = map[string]bool{
	"binary": true,
	"nocase": true,
	"rtrim":  true,
}

// SQLiteType maps a declared type name onto its storage class.
func SQLiteType(declared string) (string, error) {
	t, ok := sqliteTypeAliases[strings.ToLower(declared)]
	if !ok {
		return "", apperrors.NewUnsupported("sqlite type", fmt.Sprintf("%q", declared))
	}
	return t, nil
}

// SQLiteStatus holds the table-level options of a SQLite table.
type SQLiteStatus struct {
	WithoutRowID bool
	Comment      string
}

// SQLiteField is a column of a SQLite table.
type SQLiteField struct {
	Name          string
	Type          string
	Nullable      bool
	AutoIncrement bool
	Default       Default
	Comment       string
	Collate       string
}

// SQL renders the column definition without its comment; this is the form
// compared between schemas.
func (f *SQLiteField) SQL() string {
	return f.sql(false)
}

// SQLWithComment renders the column definition including its comment.
func (f *SQLiteField) SQLWithComment() string {
	return f.sql(true)
}

func (f *SQLiteField) sql(comment bool) string {
	var b strings.Builder
	b.WriteString(QuoteIdent(f.Name) + " " + f.Type)
	if f.Collate != "" {
		b.WriteString(" COLLATE " + f.Collate)
	}
	if !f.Nullable {
		b.WriteString(" NOT NULL")
	}
	if !f.Default.IsNone() {
		b.WriteString(" " + f.Default.SQL())
	}
	if f.AutoIncrement {
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
	}
	if comment && f.Comment != "" {
		b.WriteString(" " + blockComment(f.Comment))
	}
	return b.String()
}

func (f *SQLiteField) normalize() {
	f.Type = strings.ToLower(f.Type)
	if t, ok := sqliteTypeAliases[f.Type]; ok {
		f.Type = t
	}
	f.Collate = strings.ToLower(f.Collate)
	if f.Type == SQLiteText && f.Collate == "" {
		f.Collate = "binary"
	}
}

// SQLiteIndex is an index of a SQLite table. PRIMARY is rendered inside
// CREATE TABLE, every other index is a CREATE INDEX statement.
type SQLiteIndex struct {
	Name    string
	Fields  []string
	Unique  bool
	Comment string
}

// IsPrimary reports whether this is the primary key.
func (i *SQLiteIndex) IsPrimary() bool {
	return i.Name == PrimaryKey
}

// SQL renders the index for table without its comment.
func (i *SQLiteIndex) SQL(table string) string {
	return i.sql(table, false)
}

// SQLWithComment renders the index including its comment.
func (i *SQLiteIndex) SQLWithComment(table string) string {
	return i.sql(table, true)
}

// The primary key comment trails the clause inside CREATE TABLE. A CREATE
// INDEX comment follows the index name since SQLite keeps stored index
// text only up to the closing parenthesis.
func (i *SQLiteIndex) sql(table string, comment bool) string {
	note := ""
	if comment && i.Comment != "" {
		note = " " + blockComment(i.Comment)
	}
	if i.IsPrimary() {
		return "PRIMARY KEY (" + quoteIdents(i.Fields) + ")" + note
	}
	unique := ""
	if i.Unique {
		unique = "UNIQUE "
	}
	return "CREATE " + unique + "INDEX " + QuoteIdent(i.Name) + note + " ON " + QuoteIdent(table) + " (" + quoteIdents(i.Fields) + ")"
}

// SQLiteTable is a SQLite table definition.
type SQLiteTable struct {
	Name    string
	Status  SQLiteStatus
	Fields  []*SQLiteField
	Indexes []*SQLiteIndex
	InitSQL string
}

// Field returns the named field or nil.
func (t *SQLiteTable) Field(name string) *SQLiteField {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Index returns the named index or nil.
func (t *SQLiteTable) Index(name string) *SQLiteIndex {
	for _, i := range t.Indexes {
		if i.Name == name {
			return i
		}
	}
	return nil
}

// AutoIncrementField returns the auto-increment field or nil.
func (t *SQLiteTable) AutoIncrementField() *SQLiteField {
	for _, f := range t.Fields {
		if f.AutoIncrement {
			return f
		}
	}
	return nil
}

// Normalize maps types onto storage classes and fills the default
// collation of text columns.
func (t *SQLiteTable) Normalize() {
	for _, f := range t.Fields {
		f.normalize()
	}
	for _, i := range t.Indexes {
		if strings.EqualFold(i.Name, PrimaryKey) {
			i.Name = PrimaryKey
		}
	}
}

// Validate checks the table invariants.
func (t *SQLiteTable) Validate() error {
	if t.Name == "" {
		return apperrors.NewValidation("", "", "table name is empty")
	}
	if len(t.Fields) == 0 {
		return apperrors.NewValidation(t.Name, "", "table has no fields")
	}
	fields := make([]fieldInfo, len(t.Fields))
	for i, f := range t.Fields {
		if _, ok := sqliteTypeAliases[f.Type]; !ok || f.Type != sqliteTypeAliases[f.Type] {
			return apperrors.NewValidation(t.Name, f.Name, fmt.Sprintf("unsupported type %q", f.Type))
		}
		if f.Collate != "" {
			if f.Type != SQLiteText {
				return apperrors.NewValidation(t.Name, f.Name, "collate is only valid on text fields")
			}
			if !sqliteCollations[f.Collate] {
				return apperrors.NewValidation(t.Name, f.Name, fmt.Sprintf("unknown collation %q", f.Collate))
			}
		}
		if f.AutoIncrement && f.Type != SQLiteInteger {
			return apperrors.NewValidation(t.Name, f.Name, "auto increment requires an integer field")
		}
		fields[i] = fieldInfo{name: f.Name, autoIncrement: f.AutoIncrement}
	}
	indexes := make([]indexInfo, len(t.Indexes))
	for i, idx := range t.Indexes {
		indexes[i] = indexInfo{name: idx.Name, fields: idx.Fields}
	}
	return validateKeys(t.Name, fields, indexes)
}

// CreateLines splits CREATE TABLE under the given name into its head, one
// entry per field (and the PRIMARY KEY constraint), and its tail.
func (t *SQLiteTable) CreateLines(name string) (head string, lines []string, tail string) {
	head = "CREATE TABLE IF NOT EXISTS " + QuoteIdent(name)
	if t.Status.Comment != "" {
		head += " " + blockComment(t.Status.Comment)
	}
	head += " ("
	for _, f := range t.Fields {
		lines = append(lines, f.SQLWithComment())
	}
	if primary := t.Index(PrimaryKey); primary != nil && t.AutoIncrementField() == nil {
		lines = append(lines, primary.SQLWithComment(name))
	}
	tail = ")"
	if t.Status.WithoutRowID {
		tail += " WITHOUT ROWID"
	}
	return head, lines, tail
}

// CreateSQL renders CREATE TABLE under the given name. The rebuild plan
// creates the new layout under a temporary name.
func (t *SQLiteTable) CreateSQL(name string) string {
	head, lines, tail := t.CreateLines(name)
	return head + strings.Join(lines, ",") + tail
}

// IndexSQL renders CREATE INDEX for every secondary index.
func (t *SQLiteTable) IndexSQL() []string {
	var stmts []string
	for _, i := range t.Indexes {
		if !i.IsPrimary() {
			stmts = append(stmts, i.SQLWithComment(t.Name))
		}
	}
	return stmts
}

func blockComment(text string) string {
	return "/* " + strings.ReplaceAll(text, "*/", "* /") + " */"
}
