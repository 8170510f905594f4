// Package parser turns the CREATE statements MySQL and SQLite report for
// their own tables into schema objects.
package parser

import (
	"fmt"
	"strings"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

// TokenKind is the lexical class of a token.
type TokenKind int

const (
	TokenField TokenKind = iota + 1
	TokenString
	TokenKeyword
	TokenOperator
	TokenComment
)

func (k TokenKind) String() string {
	switch k {
	case TokenField:
		return "field"
	case TokenString:
		return "string"
	case TokenKeyword:
		return "keyword"
	case TokenOperator:
		return "operator"
	case TokenComment:
		return "comment"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Token is one lexical unit.
type Token struct {
	Kind TokenKind
	Text string
}

// NewToken builds a token, rejecting kinds the dialect never produces.
func NewToken(dialect schema.Dialect, kind TokenKind, text string) (Token, error) {
	rules, err := rulesFor(dialect)
	if err != nil {
		return Token{}, err
	}
	if !rules.kinds[kind] {
		return Token{}, apperrors.NewUnsupported("token kind", fmt.Sprintf("%s in %s", kind, dialect))
	}
	return Token{Kind: kind, Text: text}, nil
}

// Is reports whether the token has the given kind and text. Keywords
// compare case-insensitively.
func (t Token) Is(kind TokenKind, text string) bool {
	if t.Kind != kind {
		return false
	}
	if kind == TokenKeyword {
		return strings.EqualFold(t.Text, text)
	}
	return t.Text == text
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

// sql re-serializes the token the way it would appear in source text.
func (t Token) sql() string {
	switch t.Kind {
	case TokenField:
		return schema.QuoteIdent(t.Text) + " "
	case TokenString:
		return schema.QuoteString(t.Text) + " "
	case TokenComment:
		return "/*" + t.Text + "*/ "
	case TokenOperator:
		return t.Text
	}
	return t.Text + " "
}
