package parser

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

const (
	stmtSQLiteTable = "sqlite create table"
	stmtSQLiteIndex = "sqlite create index"
)

// ParseSQLiteSchema parses a table and the CREATE INDEX statements that
// belong to it, as read from sqlite_master.
func ParseSQLiteSchema(tableSQL string, indexSQL []string) (*schema.SQLiteTable, error) {
	t, err := ParseSQLiteTable(tableSQL)
	if err != nil {
		return nil, err
	}
	for _, sql := range indexSQL {
		if err := ParseSQLiteIndex(t, sql); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ParseSQLiteTable parses a CREATE TABLE statement. Block comments after
// the table name, after a column and after the primary key become the
// corresponding comments.
func ParseSQLiteTable(sql string) (*schema.SQLiteTable, error) {
	s, err := NewScanner(schema.SQLite, sql)
	if err != nil {
		return nil, err
	}
	p := &sqliteParser{s: s}
	t, err := p.table()
	if err != nil {
		return nil, parseError(stmtSQLiteTable, s, err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseSQLiteIndex parses a CREATE INDEX statement and attaches the index
// to t.
func ParseSQLiteIndex(t *schema.SQLiteTable, sql string) error {
	s, err := NewScanner(schema.SQLite, sql)
	if err != nil {
		return err
	}
	p := &sqliteParser{s: s}
	idx, table, err := p.index()
	if err != nil {
		return parseError(stmtSQLiteIndex, s, err)
	}
	if !strings.EqualFold(table, t.Name) {
		return apperrors.NewValidation(t.Name, idx.Name, fmt.Sprintf("index belongs to table %q", table))
	}
	t.Indexes = append(t.Indexes, idx)
	t.Normalize()
	return t.Validate()
}

type sqliteParser struct {
	s *Scanner
}

func (p *sqliteParser) next() (Token, error) {
	tok, ok, err := p.s.Next()
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, errEOF
	}
	return tok, nil
}

// identifier reads a quoted or bare name.
func (p *sqliteParser) identifier() (string, error) {
	tok, err := p.next()
	if err != nil {
		return "", err
	}
	if tok.Kind != TokenString && tok.Kind != TokenKeyword {
		p.s.Push(tok)
		return "", fmt.Errorf("expected identifier, got %s", tok)
	}
	return tok.Text, nil
}

func (p *sqliteParser) ifNotExists() error {
	ok, err := p.s.Accept(TokenKeyword, "IF")
	if err != nil || !ok {
		return err
	}
	return p.s.expectKeywords("NOT", "EXISTS")
}

func (p *sqliteParser) table() (*schema.SQLiteTable, error) {
	s := p.s
	if err := s.expectKeywords("CREATE", "TABLE"); err != nil {
		return nil, err
	}
	if err := p.ifNotExists(); err != nil {
		return nil, err
	}
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	t := &schema.SQLiteTable{Name: name}

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenComment {
			t.Status.Comment = tok.Text
			continue
		}
		if tok.Is(TokenOperator, "(") {
			break
		}
		return nil, fmt.Errorf("unexpected %s before column list", tok)
	}

	for done := false; !done; {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Is(TokenKeyword, "PRIMARY"):
			if err := p.primaryConstraint(t); err != nil {
				return nil, err
			}
		case tok.Is(TokenKeyword, "CONSTRAINT"), tok.Is(TokenKeyword, "UNIQUE"),
			tok.Is(TokenKeyword, "FOREIGN"), tok.Is(TokenKeyword, "CHECK"):
			return nil, apperrors.NewUnsupported("table constraint", tok.Text)
		default:
			s.Push(tok)
			f, err := p.field(t)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		}

		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		switch {
		case sep.Is(TokenOperator, ","):
		case sep.Is(TokenOperator, ")"):
			done = true
		default:
			return nil, fmt.Errorf("unexpected %s in column list", sep)
		}
	}

	for {
		tok, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return t, nil
		}
		switch {
		case tok.Kind == TokenComment:
			t.Status.Comment = tok.Text
		case tok.Is(TokenKeyword, "WITHOUT"):
			if err := s.Expect(TokenKeyword, "ROWID"); err != nil {
				return nil, err
			}
			t.Status.WithoutRowID = true
		case tok.Is(TokenOperator, ","), tok.Is(TokenKeyword, ";"):
		default:
			return nil, fmt.Errorf("unexpected %s after column list", tok)
		}
	}
}

func (p *sqliteParser) addPrimary(t *schema.SQLiteTable, idx *schema.SQLiteIndex) error {
	if t.Index(schema.PrimaryKey) != nil {
		return apperrors.NewValidation(t.Name, schema.PrimaryKey, "primary key declared twice")
	}
	t.Indexes = append(t.Indexes, idx)
	return nil
}

func (p *sqliteParser) primaryConstraint(t *schema.SQLiteTable) error {
	if err := p.s.Expect(TokenKeyword, "KEY"); err != nil {
		return err
	}
	members, err := p.members()
	if err != nil {
		return err
	}
	idx := &schema.SQLiteIndex{Name: schema.PrimaryKey, Fields: members}
	if comment, ok, err := p.s.AcceptKind(TokenComment); err != nil {
		return err
	} else if ok {
		idx.Comment = comment
	}
	return p.addPrimary(t, idx)
}

func (p *sqliteParser) field(t *schema.SQLiteTable) (*schema.SQLiteField, error) {
	s := p.s
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	declared, err := s.ExpectKind(TokenKeyword)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	typ, err := schema.SQLiteType(declared)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	f := &schema.SQLiteField{Name: name, Type: typ, Nullable: true}

	// length arguments such as varchar(255) carry no meaning in SQLite
	open, err := s.Accept(TokenOperator, "(")
	if err != nil {
		return nil, err
	}
	for open {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		open = !tok.Is(TokenOperator, ")")
	}

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Is(TokenOperator, ",") || tok.Is(TokenOperator, ")") {
			s.Push(tok)
			return f, nil
		}
		if tok.Kind == TokenComment {
			f.Comment = tok.Text
			continue
		}
		if tok.Kind != TokenKeyword {
			return nil, fmt.Errorf("field %s: unexpected %s", name, tok)
		}
		switch strings.ToUpper(tok.Text) {
		case "NOT":
			if err := s.Expect(TokenKeyword, "NULL"); err != nil {
				return nil, err
			}
			f.Nullable = false
		case "NULL":
			f.Nullable = true
		case "AUTOINCREMENT":
			f.AutoIncrement = true
		case "DEFAULT":
			d, err := p.defaultValue()
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			f.Default = d
		case "COLLATE":
			collate, err := s.ExpectKind(TokenKeyword)
			if err != nil {
				return nil, err
			}
			f.Collate = strings.ToLower(collate)
		case "PRIMARY":
			if err := s.Expect(TokenKeyword, "KEY"); err != nil {
				return nil, err
			}
			if _, err := p.acceptOrder(); err != nil {
				return nil, err
			}
			if err := p.addPrimary(t, &schema.SQLiteIndex{Name: schema.PrimaryKey, Fields: []string{name}}); err != nil {
				return nil, err
			}
		default:
			return nil, apperrors.NewUnsupported("column constraint", fmt.Sprintf("%s on %s", tok.Text, name))
		}
	}
}

func (p *sqliteParser) defaultValue() (schema.Default, error) {
	tok, err := p.next()
	if err != nil {
		return schema.Default{}, err
	}
	switch {
	case tok.Kind == TokenString:
		return schema.ValueDefault(tok.Text), nil
	case tok.Is(TokenKeyword, "NULL"):
		return schema.NullDefault(), nil
	case tok.Kind == TokenKeyword && isNumeric(tok.Text):
		return schema.ValueDefault(tok.Text), nil
	}
	return schema.Default{}, apperrors.NewUnsupported("default expression", tok.String())
}

// isNumeric reports whether text is a bare numeric literal. Other barewords
// such as CURRENT_TIMESTAMP are expressions and would change meaning if
// stored as text.
func isNumeric(text string) bool {
	if strings.ContainsFunc(text, func(r rune) bool {
		return r != 'e' && r != 'E' && (r < '0' || r > '9') && !strings.ContainsRune("+-.", r)
	}) {
		return false
	}
	_, err := strconv.ParseFloat(text, 64)
	return err == nil
}

func (p *sqliteParser) acceptOrder() (bool, error) {
	ok, err := p.s.Accept(TokenKeyword, "ASC")
	if err != nil || ok {
		return ok, err
	}
	return p.s.Accept(TokenKeyword, "DESC")
}

// members reads a parenthesized column list. Per-column collations and
// sort orders are accepted and dropped.
func (p *sqliteParser) members() ([]string, error) {
	if err := p.s.Expect(TokenOperator, "("); err != nil {
		return nil, err
	}
	var members []string
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		members = append(members, name)
		collate, err := p.s.Accept(TokenKeyword, "COLLATE")
		if err != nil {
			return nil, err
		}
		if collate {
			if _, err := p.s.ExpectKind(TokenKeyword); err != nil {
				return nil, err
			}
		}
		if _, err := p.acceptOrder(); err != nil {
			return nil, err
		}
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Is(TokenOperator, ","):
		case tok.Is(TokenOperator, ")"):
			return members, nil
		default:
			return nil, fmt.Errorf("unexpected %s in member list", tok)
		}
	}
}

func (p *sqliteParser) index() (*schema.SQLiteIndex, string, error) {
	s := p.s
	if err := s.Expect(TokenKeyword, "CREATE"); err != nil {
		return nil, "", err
	}
	idx := &schema.SQLiteIndex{}
	unique, err := s.Accept(TokenKeyword, "UNIQUE")
	if err != nil {
		return nil, "", err
	}
	idx.Unique = unique
	if err := s.Expect(TokenKeyword, "INDEX"); err != nil {
		return nil, "", err
	}
	if err := p.ifNotExists(); err != nil {
		return nil, "", err
	}
	if idx.Name, err = p.identifier(); err != nil {
		return nil, "", err
	}
	if comment, ok, err := s.AcceptKind(TokenComment); err != nil {
		return nil, "", err
	} else if ok {
		idx.Comment = comment
	}
	if err := s.Expect(TokenKeyword, "ON"); err != nil {
		return nil, "", err
	}
	table, err := p.identifier()
	if err != nil {
		return nil, "", err
	}
	if idx.Fields, err = p.members(); err != nil {
		return nil, "", err
	}
	for {
		tok, ok, err := s.Next()
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return idx, table, nil
		}
		switch {
		case tok.Kind == TokenComment:
			idx.Comment = tok.Text
		case tok.Is(TokenKeyword, "WHERE"):
			return nil, "", apperrors.NewUnsupported("partial index", idx.Name)
		default:
			return nil, "", fmt.Errorf("unexpected %s after index members", tok)
		}
	}
}
