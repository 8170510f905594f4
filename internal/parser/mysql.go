package parser

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

const (
	stmtMySQLCreate = "mysql create statement"
	stmtMySQLTable  = "mysql create table"
	stmtMySQLView   = "mysql create view"
)

// StatusRow is the part of a SHOW TABLE STATUS row the parser uses.
type StatusRow struct {
	Engine    string
	Collation string
	RowFormat string
}

// ColumnRow is the part of a SHOW FULL COLUMNS row the parser uses.
type ColumnRow struct {
	Field     string
	Collation string
}

// MySQLTableInput is what introspection returns for one table. Status and
// Columns are optional; when present they override what the CREATE text
// leaves implicit.
type MySQLTableInput struct {
	CreateSQL string
	Status    *StatusRow
	Columns   []ColumnRow
}

func parseError(statement string, s *Scanner, err error) error {
	var pe *apperrors.ParseError
	if errors.As(err, &pe) {
		return err
	}
	return apperrors.NewParse(statement, s.Near(), s.SQL(), err)
}

// ParseMySQLCreate parses SHOW CREATE output that may be a table or a view.
func ParseMySQLCreate(in MySQLTableInput) (*schema.Object, error) {
	s, err := NewScanner(schema.MySQL, in.CreateSQL)
	if err != nil {
		return nil, err
	}
	if err := s.Expect(TokenKeyword, "CREATE"); err != nil {
		return nil, parseError(stmtMySQLCreate, s, err)
	}
	isTable, err := s.Accept(TokenKeyword, "TABLE")
	if err != nil {
		return nil, parseError(stmtMySQLCreate, s, err)
	}
	if isTable {
		t, err := ParseMySQLTable(in)
		if err != nil {
			return nil, err
		}
		return schema.NewMySQLTableObject(t), nil
	}
	v, err := ParseMySQLView(in.CreateSQL)
	if err != nil {
		return nil, err
	}
	return schema.NewMySQLViewObject(v), nil
}

// ParseMySQLTable parses SHOW CREATE TABLE output into a validated table.
func ParseMySQLTable(in MySQLTableInput) (*schema.MySQLTable, error) {
	s, err := NewScanner(schema.MySQL, in.CreateSQL)
	if err != nil {
		return nil, err
	}
	p := &mysqlTableParser{s: s}
	t, err := p.parse()
	if err != nil {
		return nil, parseError(stmtMySQLTable, s, err)
	}
	applyIntrospection(t, in)
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// applyIntrospection folds in what SHOW CREATE TABLE omits: table-level
// metadata from SHOW TABLE STATUS and per-column collations.
func applyIntrospection(t *schema.MySQLTable, in MySQLTableInput) {
	if st := in.Status; st != nil {
		if st.Engine != "" {
			t.Status.Engine = st.Engine
		}
		if st.Collation != "" {
			t.Status.Collate = strings.ToLower(st.Collation)
		}
		if st.RowFormat != "" {
			t.Status.RowFormat = st.RowFormat
		}
	}
	for _, col := range in.Columns {
		if col.Collation == "" {
			continue
		}
		if f := t.Field(col.Field); f != nil {
			f.Collate = strings.ToLower(col.Collation)
		}
	}
}

type mysqlTableParser struct {
	s *Scanner
}

func (p *mysqlTableParser) parse() (*schema.MySQLTable, error) {
	s := p.s
	if err := s.expectKeywords("CREATE", "TABLE"); err != nil {
		return nil, err
	}
	ifNotExists, err := s.Accept(TokenKeyword, "IF")
	if err != nil {
		return nil, err
	}
	if ifNotExists {
		if err := s.expectKeywords("NOT", "EXISTS"); err != nil {
			return nil, err
		}
	}
	name, err := s.ExpectKind(TokenField)
	if err != nil {
		return nil, err
	}
	t := &schema.MySQLTable{Name: name}

	// skip keywords until the column list opens
	for {
		tok, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errEOF
		}
		if tok.Is(TokenOperator, "(") {
			break
		}
		if tok.Kind != TokenKeyword {
			return nil, fmt.Errorf("unexpected %s before column list", tok)
		}
	}

	for {
		tok, ok, err := s.Peek()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errEOF
		}
		if tok.Kind != TokenField {
			break
		}
		f, err := p.field()
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, f)
	}

	for {
		tok, ok, err := s.Peek()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errEOF
		}
		if tok.Kind != TokenKeyword {
			break
		}
		idx, err := p.index()
		if err != nil {
			return nil, err
		}
		t.Indexes = append(t.Indexes, idx)
	}

	if err := s.Expect(TokenOperator, ")"); err != nil {
		return nil, err
	}
	if err := p.status(&t.Status); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *mysqlTableParser) field() (*schema.MySQLField, error) {
	s := p.s
	name, err := s.ExpectKind(TokenField)
	if err != nil {
		return nil, err
	}
	f := &schema.MySQLField{Name: name, Nullable: true}
	typ, err := s.ExpectKind(TokenKeyword)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	f.Type = strings.ToLower(typ)

	open, err := s.Accept(TokenOperator, "(")
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	if open {
		attr, err := p.typeArgs(f.Type == "enum" || f.Type == "set")
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		f.Attr = attr
	}
	if err := p.fieldAttributes(f); err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return f, nil
}

// typeArgs reads the parenthesized type arguments. Enum and set members
// are string literals and keep their declared order.
func (p *mysqlTableParser) typeArgs(members bool) (string, error) {
	var parts []string
	for {
		tok, ok, err := p.s.Next()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errEOF
		}
		switch {
		case tok.Is(TokenOperator, ")"):
			return strings.Join(parts, ","), nil
		case tok.Is(TokenOperator, ","):
		case tok.Kind == TokenString:
			parts = append(parts, schema.QuoteString(tok.Text))
		case tok.Kind == TokenKeyword && !members:
			parts = append(parts, tok.Text)
		default:
			return "", fmt.Errorf("unexpected %s in type arguments", tok)
		}
	}
}

func (p *mysqlTableParser) fieldAttributes(f *schema.MySQLField) error {
	s := p.s
	for {
		tok, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return errEOF
		}
		switch {
		case tok.Is(TokenOperator, ","):
			return nil
		case tok.Is(TokenOperator, ")"):
			s.Push(tok)
			return nil
		case tok.Kind != TokenKeyword:
			return fmt.Errorf("unexpected %s", tok)
		}

		switch tok.Text {
		case "UNSIGNED":
			f.Unsigned = true
		case "ZEROFILL":
			f.Zerofill = true
		case "NOT":
			if err := s.Expect(TokenKeyword, "NULL"); err != nil {
				return err
			}
			f.Nullable = false
		case "NULL":
			f.Nullable = true
		case "AUTO_INCREMENT":
			f.AutoIncrement = true
		case "COMMENT":
			comment, err := s.ExpectKind(TokenString)
			if err != nil {
				return err
			}
			f.Comment = comment
		case "DEFAULT":
			value, isString, err := s.AcceptKind(TokenString)
			if err != nil {
				return err
			}
			if isString {
				f.Default = schema.ValueDefault(value)
				break
			}
			if err := s.Expect(TokenKeyword, "NULL"); err != nil {
				return fmt.Errorf("default must be a string or NULL: %w", err)
			}
			f.Default = schema.NullDefault()
		case "CHARACTER":
			if err := s.Expect(TokenKeyword, "SET"); err != nil {
				return err
			}
			charset, err := s.ExpectKind(TokenKeyword)
			if err != nil {
				return err
			}
			f.Charset = strings.ToLower(charset)
		case "COLLATE":
			collate, err := s.ExpectKind(TokenKeyword)
			if err != nil {
				return err
			}
			f.Collate = strings.ToLower(collate)
		default:
			return fmt.Errorf("unsupported column attribute %s", tok.Text)
		}
	}
}

func (p *mysqlTableParser) index() (*schema.MySQLIndex, error) {
	s := p.s
	tok, _, err := s.Next()
	if err != nil {
		return nil, err
	}
	idx := &schema.MySQLIndex{}
	switch tok.Text {
	case "PRIMARY":
		if err := s.Expect(TokenKeyword, "KEY"); err != nil {
			return nil, err
		}
		idx.Name = schema.PrimaryKey
	case "UNIQUE", "FULLTEXT":
		idx.Unique = tok.Text == "UNIQUE"
		idx.Fulltext = tok.Text == "FULLTEXT"
		if _, err := p.acceptKeyWord(); err != nil {
			return nil, err
		}
	case "KEY", "INDEX":
	default:
		return nil, fmt.Errorf("unsupported table element %s", tok.Text)
	}
	if idx.Name == "" {
		name, err := s.ExpectKind(TokenField)
		if err != nil {
			return nil, err
		}
		idx.Name = name
	}
	if err := p.indexMembers(idx); err != nil {
		return nil, fmt.Errorf("index %s: %w", idx.Name, err)
	}

	for {
		tok, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errEOF
		}
		switch {
		case tok.Is(TokenOperator, ","):
			return idx, nil
		case tok.Is(TokenOperator, ")"):
			s.Push(tok)
			return idx, nil
		case tok.Is(TokenKeyword, "COMMENT"):
			comment, err := s.ExpectKind(TokenString)
			if err != nil {
				return nil, err
			}
			idx.Comment = comment
		case tok.Is(TokenKeyword, "USING"):
			if _, err := s.ExpectKind(TokenKeyword); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("index %s: unexpected %s", idx.Name, tok)
		}
	}
}

func (p *mysqlTableParser) acceptKeyWord() (bool, error) {
	ok, err := p.s.Accept(TokenKeyword, "KEY")
	if err != nil || ok {
		return ok, err
	}
	return p.s.Accept(TokenKeyword, "INDEX")
}

// indexMembers reads (`a`,`b`(10)); a prefix length stays on the member as
// "b(10)".
func (p *mysqlTableParser) indexMembers(idx *schema.MySQLIndex) error {
	s := p.s
	if err := s.Expect(TokenOperator, "("); err != nil {
		return err
	}
	for {
		member, err := s.ExpectKind(TokenField)
		if err != nil {
			return err
		}
		prefix, err := s.Accept(TokenOperator, "(")
		if err != nil {
			return err
		}
		if prefix {
			length, err := s.ExpectKind(TokenKeyword)
			if err != nil {
				return err
			}
			if err := s.Expect(TokenOperator, ")"); err != nil {
				return err
			}
			member += "(" + length + ")"
		}
		idx.Fields = append(idx.Fields, member)

		tok, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return errEOF
		}
		switch {
		case tok.Is(TokenOperator, ","):
		case tok.Is(TokenOperator, ")"):
			return nil
		default:
			return fmt.Errorf("unexpected %s in member list", tok)
		}
	}
}

func (p *mysqlTableParser) status(st *schema.MySQLStatus) error {
	s := p.s
	for {
		tok, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if tok.Kind != TokenKeyword {
			return fmt.Errorf("unexpected %s in table options", tok)
		}
		switch tok.Text {
		case "DEFAULT":
			// DEFAULT CHARSET=, DEFAULT COLLATE=
		case "ENGINE":
			st.Engine, err = p.option()
		case "CHARSET":
			st.Charset, err = p.option()
		case "CHARACTER":
			if err = s.Expect(TokenKeyword, "SET"); err == nil {
				st.Charset, err = p.option()
			}
		case "COLLATE":
			st.Collate, err = p.option()
		case "COMMENT":
			if _, err = s.Accept(TokenOperator, "="); err == nil {
				st.Comment, err = s.ExpectKind(TokenString)
			}
		case "AUTO_INCREMENT":
			// the counter value is not part of the schema
			_, err = p.option()
		case "ROW_FORMAT":
			st.RowFormat, err = p.option()
		case "CHECKSUM":
			st.Checksum, err = p.option()
		default:
			return fmt.Errorf("unsupported table option %s", tok.Text)
		}
		if err != nil {
			return fmt.Errorf("table option %s: %w", tok.Text, err)
		}
	}
}

func (p *mysqlTableParser) option() (string, error) {
	if _, err := p.s.Accept(TokenOperator, "="); err != nil {
		return "", err
	}
	value, err := p.s.ExpectKind(TokenKeyword)
	if err != nil {
		return "", err
	}
	return strings.ToLower(value), nil
}

// ParseMySQLView parses SHOW CREATE VIEW output. The body after AS is kept
// verbatim.
func ParseMySQLView(sql string) (*schema.MySQLView, error) {
	s, err := NewScanner(schema.MySQL, sql)
	if err != nil {
		return nil, err
	}
	v, err := parseMySQLView(s)
	if err != nil {
		return nil, parseError(stmtMySQLView, s, err)
	}
	v.Normalize()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func parseMySQLView(s *Scanner) (*schema.MySQLView, error) {
	if err := s.Expect(TokenKeyword, "CREATE"); err != nil {
		return nil, err
	}
	replace, err := s.Accept(TokenKeyword, "OR")
	if err != nil {
		return nil, err
	}
	if replace {
		if err := s.Expect(TokenKeyword, "REPLACE"); err != nil {
			return nil, err
		}
	}

	v := &schema.MySQLView{}
	for {
		tok, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errEOF
		}
		if tok.Kind != TokenKeyword {
			return nil, fmt.Errorf("unexpected %s", tok)
		}
		switch tok.Text {
		case "ALGORITHM":
			if err := s.Expect(TokenOperator, "="); err != nil {
				return nil, err
			}
			algorithm, err := s.ExpectKind(TokenKeyword)
			if err != nil {
				return nil, err
			}
			v.Algorithm = strings.ToLower(algorithm)
		case "DEFINER":
			// the definer is resolved at apply time, not stored
			if err := s.Expect(TokenOperator, "="); err != nil {
				return nil, err
			}
			if err := definerPart(s); err != nil {
				return nil, err
			}
			at, err := s.Accept(TokenOperator, "@")
			if err != nil {
				return nil, err
			}
			if at {
				if err := definerPart(s); err != nil {
					return nil, err
				}
			}
		case "SQL":
			if err := s.Expect(TokenKeyword, "SECURITY"); err != nil {
				return nil, err
			}
			security, err := s.ExpectKind(TokenKeyword)
			if err != nil {
				return nil, err
			}
			v.Security = strings.ToLower(security)
		case "VIEW":
			name, err := s.ExpectKind(TokenField)
			if err != nil {
				return nil, err
			}
			v.Name = name
			if err := s.Expect(TokenKeyword, "AS"); err != nil {
				return nil, err
			}
			v.Body = strings.TrimSpace(s.Remainder())
			return v, nil
		default:
			return nil, fmt.Errorf("unexpected %s in view header", tok)
		}
	}
}

func definerPart(s *Scanner) error {
	tok, ok, err := s.Next()
	if err != nil {
		return err
	}
	if !ok {
		return errEOF
	}
	if tok.Kind == TokenOperator {
		return fmt.Errorf("unexpected %s in definer", tok)
	}
	return nil
}
