package parser

import (
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

func scanAll(t *testing.T, dialect schema.Dialect, src string) []Token {
	t.Helper()
	s, err := NewScanner(dialect, src)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	var toks []Token
	for {
		tok, ok, err := s.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestScannerTokens(t *testing.T) {
	tests := []struct {
		name    string
		dialect schema.Dialect
		src     string
		want    []Token
	}{
		{
			name:    "mysql column",
			dialect: schema.MySQL,
			src:     "create table `t` (`id` int(10) DEFAULT 'it''s')",
			want: []Token{
				{TokenKeyword, "CREATE"},
				{TokenKeyword, "TABLE"},
				{TokenField, "t"},
				{TokenOperator, "("},
				{TokenField, "id"},
				{TokenKeyword, "INT"},
				{TokenOperator, "("},
				{TokenKeyword, "10"},
				{TokenOperator, ")"},
				{TokenKeyword, "DEFAULT"},
				{TokenString, "it's"},
				{TokenOperator, ")"},
			},
		},
		{
			name:    "mysql definer",
			dialect: schema.MySQL,
			src:     "DEFINER=`root`@`%`",
			want: []Token{
				{TokenKeyword, "DEFINER"},
				{TokenOperator, "="},
				{TokenField, "root"},
				{TokenOperator, "@"},
				{TokenField, "%"},
			},
		},
		{
			name:    "sqlite quotes and comments",
			dialect: schema.SQLite,
			src:     "CREATE TABLE \"t\" /* note */ (`a` text/*c*/)",
			want: []Token{
				{TokenKeyword, "CREATE"},
				{TokenKeyword, "TABLE"},
				{TokenString, "t"},
				{TokenComment, "note"},
				{TokenOperator, "("},
				{TokenString, "a"},
				{TokenKeyword, "text"},
				{TokenComment, "c"},
				{TokenOperator, ")"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanAll(t, tt.dialect, tt.src)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tokens =\n%v\nwant\n%v", got, tt.want)
			}
		})
	}
}

func TestScannerErrors(t *testing.T) {
	tests := []struct {
		name    string
		dialect schema.Dialect
		src     string
		want    error
	}{
		{"unterminated field", schema.MySQL, "`abc", errUnterminatedQuote},
		{"unterminated string", schema.SQLite, "'abc", errUnterminatedQuote},
		{"unterminated comment", schema.SQLite, "/* abc", errUnterminatedComment},
		{"bare slash", schema.SQLite, "/ abc", errUnexpectedCharacter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScanner(tt.dialect, tt.src)
			if err != nil {
				t.Fatalf("NewScanner() error = %v", err)
			}
			if _, _, err := s.Next(); !errors.Is(err, tt.want) {
				t.Errorf("Next() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScannerPushback(t *testing.T) {
	s, err := NewScanner(schema.MySQL, "CREATE VIEW `v` AS select 1")
	if err != nil {
		t.Fatal(err)
	}
	first, _, _ := s.Next()
	second, _, _ := s.Next()
	s.Push(second)
	s.Push(first)

	got, _, _ := s.Next()
	if got != first {
		t.Errorf("first pop = %v, want %v", got, first)
	}
	got, _, _ = s.Next()
	if got != second {
		t.Errorf("second pop = %v, want %v", got, second)
	}

	s.Push(second)
	if rest, want := s.Remainder(), "VIEW  `v` AS select 1"; rest != want {
		t.Errorf("Remainder() = %q, want %q", rest, want)
	}
	if _, ok, _ := s.Next(); ok {
		t.Error("Next() after Remainder() returned a token")
	}

	s.Reset()
	if tok, _, _ := s.Next(); tok != first {
		t.Errorf("Next() after Reset() = %v, want %v", tok, first)
	}
}

func TestScannerExpect(t *testing.T) {
	s, err := NewScanner(schema.MySQL, "NOT NULL `x`")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Expect(TokenKeyword, "DEFAULT"); err == nil {
		t.Fatal("Expect(DEFAULT) succeeded on NOT")
	}
	// the mismatched token is still there
	if err := s.expectKeywords("not", "null"); err != nil {
		t.Fatalf("expectKeywords() error = %v", err)
	}
	if ok, err := s.Accept(TokenKeyword, "DEFAULT"); ok || err != nil {
		t.Fatalf("Accept(DEFAULT) = %v, %v", ok, err)
	}
	name, err := s.ExpectKind(TokenField)
	if err != nil || name != "x" {
		t.Fatalf("ExpectKind(field) = %q, %v", name, err)
	}
	if _, err := s.ExpectKind(TokenField); !errors.Is(err, errEOF) {
		t.Errorf("ExpectKind() at end error = %v, want errEOF", err)
	}
}

func TestScannerNear(t *testing.T) {
	long := ""
	for len(long) < 200 {
		long += "abcdefghij "
	}
	s, err := NewScanner(schema.SQLite, long)
	if err != nil {
		t.Fatal(err)
	}
	if got := len([]rune(s.Near())); got != nearLength {
		t.Errorf("len(Near()) = %d, want %d", got, nearLength)
	}
}

func TestNewToken(t *testing.T) {
	if _, err := NewToken(schema.SQLite, TokenField, "x"); !errors.Is(err, apperrors.ErrUnsupported) {
		t.Errorf("sqlite field token error = %v, want ErrUnsupported", err)
	}
	if _, err := NewToken(schema.MySQL, TokenComment, "x"); !errors.Is(err, apperrors.ErrUnsupported) {
		t.Errorf("mysql comment token error = %v, want ErrUnsupported", err)
	}
	tok, err := NewToken(schema.MySQL, TokenKeyword, "NULL")
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	if !tok.Is(TokenKeyword, "null") {
		t.Error("keyword comparison should ignore case")
	}
}
