package schema

import (
	"fmt"
	"strings"

	apperrors "github.com/koba/schema-sync/internal/errors"
)

// Table defaults applied when a declarative MySQL table omits its status.
const (
	DefaultEngine  = "innodb"
	DefaultCharset = "utf8mb4"
	DefaultCollate = "utf8mb4_general_ci"
)

// Display widths MySQL reports for integer types declared without one,
// indexed by [signed, unsigned].
var mysqlDisplayWidths = map[string][2]string{
	"tinyint":   {"4", "3"},
	"smallint":  {"6", "5"},
	"mediumint": {"9", "8"},
	"int":       {"11", "10"},
	"integer":   {"11", "10"},
	"bigint":    {"20", "20"},
}

// MySQLStatus holds table options.
type MySQLStatus struct {
	Engine    string
	Charset   string
	Collate   string
	Comment   string
	Checksum  string
	RowFormat string
}

// SQL renders the table options clause of CREATE TABLE.
func (s MySQLStatus) SQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ENGINE=%s DEFAULT CHARSET=%s", s.Engine, s.Charset)
	if s.Collate != "" {
		b.WriteString(" COLLATE=" + s.Collate)
	}
	if s.Checksum != "" {
		b.WriteString(" CHECKSUM=" + s.Checksum)
	}
	if s.RowFormat != "" {
		b.WriteString(" ROW_FORMAT=" + s.RowFormat)
	}
	if s.Comment != "" {
		b.WriteString(" COMMENT=" + QuoteString(s.Comment))
	}
	return b.String()
}

func (s *MySQLStatus) normalize() {
	s.Engine = strings.ToLower(s.Engine)
	s.Charset = strings.ToLower(s.Charset)
	s.Collate = strings.ToLower(s.Collate)
	s.RowFormat = strings.ToLower(s.RowFormat)
	if s.Engine == "" {
		s.Engine = DefaultEngine
	}
	if s.Charset == "" {
		if s.Collate != "" {
			s.Charset = CharsetOfCollation(s.Collate)
		} else {
			s.Charset = DefaultCharset
		}
	}
	if s.Collate == "" && s.Charset == DefaultCharset {
		s.Collate = DefaultCollate
	}
}

// CharsetOfCollation derives the character set a collation belongs to,
// e.g. utf8mb4_general_ci -> utf8mb4.
func CharsetOfCollation(collation string) string {
	charset, _, _ := strings.Cut(strings.ToLower(collation), "_")
	return charset
}

// MySQLField is a column of a MySQL table.
type MySQLField struct {
	Name          string
	Type          string
	Attr          string
	Unsigned      bool
	Zerofill      bool
	Nullable      bool
	AutoIncrement bool
	Default       Default
	Comment       string
	Charset       string
	Collate       string
}

// IsCharType reports whether the column carries a charset and collation.
func (f *MySQLField) IsCharType() bool {
	return f.Type == "text" || strings.HasPrefix(f.Type, "varchar") || strings.HasPrefix(f.Type, "char")
}

// SQL renders the column definition.
func (f *MySQLField) SQL() string {
	return f.sql(true)
}

// SQLWithoutAutoIncrement renders the column definition with the
// auto_increment attribute left out.
func (f *MySQLField) SQLWithoutAutoIncrement() string {
	return f.sql(false)
}

func (f *MySQLField) sql(autoIncrement bool) string {
	var b strings.Builder
	b.WriteString(QuoteIdent(f.Name) + " " + f.Type)
	if f.Type == "text" {
		f.writeCharset(&b)
		if !f.Nullable {
			b.WriteString(" NOT NULL")
		}
	} else {
		if f.Attr != "" {
			b.WriteString("(" + f.Attr + ")")
		}
		if f.Unsigned {
			b.WriteString(" unsigned")
		}
		if f.Zerofill {
			b.WriteString(" zerofill")
		}
		if f.IsCharType() {
			f.writeCharset(&b)
		}
		if !f.Nullable {
			b.WriteString(" NOT NULL")
		}
		if f.AutoIncrement && autoIncrement {
			b.WriteString(" auto_increment")
		}
		if !f.Default.IsNone() {
			b.WriteString(" " + f.Default.SQL())
		}
	}
	if f.Comment != "" {
		b.WriteString(" COMMENT " + QuoteString(f.Comment))
	}
	return b.String()
}

func (f *MySQLField) isLOB() bool {
	return strings.HasSuffix(f.Type, "text") || strings.HasSuffix(f.Type, "blob")
}

func (f *MySQLField) writeCharset(b *strings.Builder) {
	if f.Charset != "" {
		b.WriteString(" CHARACTER SET " + f.Charset)
	}
	if f.Collate != "" {
		b.WriteString(" COLLATE " + f.Collate)
	}
}

func (f *MySQLField) normalize(status MySQLStatus) {
	f.Type = strings.ToLower(f.Type)
	f.Charset = strings.ToLower(f.Charset)
	f.Collate = strings.ToLower(f.Collate)
	if f.Attr == "" {
		if widths, ok := mysqlDisplayWidths[f.Type]; ok {
			if f.Unsigned {
				f.Attr = widths[1]
			} else {
				f.Attr = widths[0]
			}
		}
	}
	if !f.IsCharType() {
		f.Charset, f.Collate = "", ""
	} else {
		if f.Charset == "" {
			if f.Collate == "" || f.Collate == status.Collate {
				f.Charset = status.Charset
			} else {
				f.Charset = CharsetOfCollation(f.Collate)
			}
		}
		if f.Collate == "" && f.Charset == status.Charset {
			f.Collate = status.Collate
		}
	}
	// The engine reports DEFAULT NULL for every nullable column that has
	// no other default, except TEXT and BLOB columns.
	if f.isLOB() {
		if f.Default.IsNull() {
			f.Default = Default{}
		}
	} else if f.Nullable && !f.AutoIncrement && f.Default.IsNone() {
		f.Default = NullDefault()
	}
}

// MySQLIndex is a named index of a MySQL table.
type MySQLIndex struct {
	Name     string
	Fields   []string
	Unique   bool
	Fulltext bool
	Comment  string
}

// IsPrimary reports whether this is the primary key.
func (i *MySQLIndex) IsPrimary() bool {
	return i.Name == PrimaryKey
}

// CreateSQL renders the index as a CREATE TABLE definition line.
func (i *MySQLIndex) CreateSQL() string {
	var head string
	switch {
	case i.IsPrimary():
		head = "PRIMARY KEY"
	case i.Fulltext:
		head = "FULLTEXT KEY " + QuoteIdent(i.Name)
	case i.Unique:
		head = "UNIQUE KEY " + QuoteIdent(i.Name)
	default:
		head = "KEY " + QuoteIdent(i.Name)
	}
	return head + " (" + indexMembers(i.Fields) + ")" + i.commentSQL()
}

// AlterSQL renders the index as it follows ADD in ALTER TABLE.
func (i *MySQLIndex) AlterSQL() string {
	var head string
	switch {
	case i.IsPrimary():
		head = "PRIMARY KEY"
	case i.Fulltext:
		head = "FULLTEXT " + QuoteIdent(i.Name)
	case i.Unique:
		head = "UNIQUE " + QuoteIdent(i.Name)
	default:
		head = "INDEX " + QuoteIdent(i.Name)
	}
	return head + " (" + indexMembers(i.Fields) + ")" + i.commentSQL()
}

// DropSQL renders the ALTER TABLE clause that removes the index.
func (i *MySQLIndex) DropSQL() string {
	if i.IsPrimary() {
		return "DROP PRIMARY KEY"
	}
	return "DROP INDEX " + QuoteIdent(i.Name)
}

func (i *MySQLIndex) commentSQL() string {
	if i.Comment == "" {
		return ""
	}
	return " COMMENT " + QuoteString(i.Comment)
}

// IndexMemberColumn strips a prefix length suffix: "name(10)" -> "name".
func IndexMemberColumn(member string) string {
	if open := strings.LastIndexByte(member, '('); open > 0 && strings.HasSuffix(member, ")") {
		return member[:open]
	}
	return member
}

func indexMembers(members []string) string {
	quoted := make([]string, len(members))
	for i, m := range members {
		col := IndexMemberColumn(m)
		quoted[i] = QuoteIdent(col) + m[len(col):]
	}
	return strings.Join(quoted, ",")
}

// MySQLTable is a MySQL table definition.
type MySQLTable struct {
	Name    string
	Status  MySQLStatus
	Fields  []*MySQLField
	Indexes []*MySQLIndex
	InitSQL string
}

// Field returns the named field or nil.
func (t *MySQLTable) Field(name string) *MySQLField {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Index returns the named index or nil.
func (t *MySQLTable) Index(name string) *MySQLIndex {
	for _, i := range t.Indexes {
		if i.Name == name {
			return i
		}
	}
	return nil
}

// Normalize fills engine defaults and lower-cases names the engine reports
// in lower case. It must run before Validate and comparison.
func (t *MySQLTable) Normalize() {
	t.Status.normalize()
	for _, f := range t.Fields {
		f.normalize(t.Status)
	}
	for _, i := range t.Indexes {
		if strings.EqualFold(i.Name, PrimaryKey) {
			i.Name = PrimaryKey
		}
	}
}

// Validate checks the table invariants.
func (t *MySQLTable) Validate() error {
	if t.Name == "" {
		return apperrors.NewValidation("", "", "table name is empty")
	}
	if len(t.Fields) == 0 {
		return apperrors.NewValidation(t.Name, "", "table has no fields")
	}
	if t.Status.Engine == "" || t.Status.Charset == "" || t.Status.Collate == "" {
		return apperrors.NewValidation(t.Name, "status", "engine, charset and collate are required")
	}
	fields := make([]fieldInfo, len(t.Fields))
	for i, f := range t.Fields {
		if f.Type == "" {
			return apperrors.NewValidation(t.Name, f.Name, "field type is empty")
		}
		if (f.Charset != "" || f.Collate != "") != f.IsCharType() {
			return apperrors.NewValidation(t.Name, f.Name, "charset and collate are only valid on character types")
		}
		if f.isLOB() && !f.Default.IsNone() {
			return apperrors.NewValidation(t.Name, f.Name, "text and blob columns cannot have a default")
		}
		fields[i] = fieldInfo{name: f.Name, autoIncrement: f.AutoIncrement}
	}
	indexes := make([]indexInfo, len(t.Indexes))
	for i, idx := range t.Indexes {
		indexes[i] = indexInfo{name: idx.Name, fields: idx.Fields}
	}
	return validateKeys(t.Name, fields, indexes)
}

// CreateLines splits the CREATE TABLE statement into its head, one entry
// per field or index, and its tail.
func (t *MySQLTable) CreateLines() (head string, lines []string, tail string) {
	for _, f := range t.Fields {
		lines = append(lines, f.SQL())
	}
	for _, i := range t.Indexes {
		lines = append(lines, i.CreateSQL())
	}
	return "CREATE TABLE IF NOT EXISTS " + QuoteIdent(t.Name) + " (", lines, ") " + t.Status.SQL()
}

// CreateSQL renders the full CREATE TABLE statement.
func (t *MySQLTable) CreateSQL() string {
	head, lines, tail := t.CreateLines()
	return head + strings.Join(lines, ",") + tail
}

// MySQLView is a MySQL view definition.
type MySQLView struct {
	Name      string
	Algorithm string
	Security  string
	Body      string
}

// Normalize lower-cases the view attributes and fills engine defaults.
func (v *MySQLView) Normalize() {
	v.Algorithm = strings.ToLower(v.Algorithm)
	v.Security = strings.ToLower(v.Security)
	if v.Algorithm == "" {
		v.Algorithm = "undefined"
	}
	if v.Security == "" {
		v.Security = "definer"
	}
	v.Body = strings.TrimSpace(v.Body)
}

// Validate checks the view has a name and a body.
func (v *MySQLView) Validate() error {
	if v.Name == "" {
		return apperrors.NewValidation("", "", "view name is empty")
	}
	if v.Body == "" {
		return apperrors.NewValidation(v.Name, "sql", "view body is empty")
	}
	switch v.Algorithm {
	case "undefined", "merge", "temptable":
	default:
		return apperrors.NewValidation(v.Name, "algorithm", fmt.Sprintf("unknown algorithm %q", v.Algorithm))
	}
	switch v.Security {
	case "definer", "invoker":
	default:
		return apperrors.NewValidation(v.Name, "security", fmt.Sprintf("unknown security %q", v.Security))
	}
	return nil
}

// CreateSQL renders CREATE VIEW. definer is "user@host"; when empty the
// DEFINER clause is omitted and the engine uses the connecting account.
func (v *MySQLView) CreateSQL(definer string) string {
	var b strings.Builder
	b.WriteString("CREATE ALGORITHM=" + strings.ToUpper(v.Algorithm))
	if definer != "" {
		b.WriteString(" DEFINER=" + QuoteDefiner(definer))
	}
	b.WriteString(" SQL SECURITY " + strings.ToUpper(v.Security))
	b.WriteString(" VIEW " + QuoteIdent(v.Name) + " AS " + v.Body)
	return b.String()
}

// QuoteDefiner renders user@host as `user`@`host`.
func QuoteDefiner(definer string) string {
	at := strings.LastIndexByte(definer, '@')
	if at < 0 {
		return QuoteIdent(definer)
	}
	return QuoteIdent(definer[:at]) + "@" + QuoteIdent(definer[at+1:])
}
