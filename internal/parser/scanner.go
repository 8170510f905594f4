package parser

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/koba/schema-sync/internal/errors"
	"github.com/koba/schema-sync/internal/schema"
)

var (
	errEOF                 = errors.New("unexpected end of input")
	errUnterminatedQuote   = errors.New("unterminated quoted token")
	errUnterminatedComment = errors.New("unterminated comment")
	errUnexpectedCharacter = errors.New("unexpected character")
)

// nearLength is how much unconsumed input a parse error quotes.
const nearLength = 80

type lexRules struct {
	operators     string
	quotes        map[byte]TokenKind
	comments      bool
	upperKeywords bool
	kinds         map[TokenKind]bool
}

var mysqlRules = &lexRules{
	operators:     "()=,@",
	quotes:        map[byte]TokenKind{'`': TokenField, '\'': TokenString},
	upperKeywords: true,
	kinds: map[TokenKind]bool{
		TokenField: true, TokenString: true, TokenKeyword: true, TokenOperator: true,
	},
}

var sqliteRules = &lexRules{
	operators: "(),",
	quotes:    map[byte]TokenKind{'`': TokenString, '\'': TokenString, '"': TokenString},
	comments:  true,
	kinds: map[TokenKind]bool{
		TokenString: true, TokenKeyword: true, TokenOperator: true, TokenComment: true,
	},
}

func rulesFor(dialect schema.Dialect) (*lexRules, error) {
	switch dialect {
	case schema.MySQL:
		return mysqlRules, nil
	case schema.SQLite:
		return sqliteRules, nil
	}
	return nil, apperrors.NewUnsupported("dialect", dialect.String())
}

// Scanner tokenizes one DDL statement. Tokens handed back with Push are
// returned again, last pushed first, before any new input is read.
type Scanner struct {
	rules  *lexRules
	src    string
	pos    int
	pushed []Token
}

// NewScanner returns a scanner for src in the given dialect.
func NewScanner(dialect schema.Dialect, src string) (*Scanner, error) {
	rules, err := rulesFor(dialect)
	if err != nil {
		return nil, err
	}
	return &Scanner{rules: rules, src: src}, nil
}

// Next returns the next token. ok is false at end of input.
func (s *Scanner) Next() (tok Token, ok bool, err error) {
	if n := len(s.pushed); n > 0 {
		tok = s.pushed[n-1]
		s.pushed = s.pushed[:n-1]
		return tok, true, nil
	}

	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}
	if s.pos >= len(s.src) {
		return Token{}, false, nil
	}

	c := s.src[s.pos]
	if kind, quoted := s.rules.quotes[c]; quoted {
		text, err := s.quoted(c)
		if err != nil {
			return Token{}, false, err
		}
		return Token{Kind: kind, Text: text}, true, nil
	}
	if s.rules.comments && c == '/' {
		if !s.commentStart(s.pos) {
			return Token{}, false, fmt.Errorf("%w %q", errUnexpectedCharacter, c)
		}
		end := strings.Index(s.src[s.pos+2:], "*/")
		if end < 0 {
			return Token{}, false, errUnterminatedComment
		}
		text := strings.TrimSpace(s.src[s.pos+2 : s.pos+2+end])
		s.pos += end + 4
		return Token{Kind: TokenComment, Text: text}, true, nil
	}
	if strings.IndexByte(s.rules.operators, c) >= 0 {
		s.pos++
		return Token{Kind: TokenOperator, Text: string(c)}, true, nil
	}

	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if isSpace(c) || strings.IndexByte(s.rules.operators, c) >= 0 {
			break
		}
		if s.rules.comments && s.commentStart(s.pos) {
			break
		}
		s.pos++
	}
	text := s.src[start:s.pos]
	if s.rules.upperKeywords {
		text = strings.ToUpper(text)
	}
	return Token{Kind: TokenKeyword, Text: text}, true, nil
}

// quoted reads a token delimited by q. A doubled delimiter stands for one
// literal delimiter.
func (s *Scanner) quoted(q byte) (string, error) {
	var b strings.Builder
	i := s.pos + 1
	for {
		j := strings.IndexByte(s.src[i:], q)
		if j < 0 {
			return "", errUnterminatedQuote
		}
		b.WriteString(s.src[i : i+j])
		i += j + 1
		if i < len(s.src) && s.src[i] == q {
			b.WriteByte(q)
			i++
			continue
		}
		s.pos = i
		return b.String(), nil
	}
}

func (s *Scanner) commentStart(i int) bool {
	return i+1 < len(s.src) && s.src[i] == '/' && s.src[i+1] == '*'
}

// Push hands a token back to the scanner.
func (s *Scanner) Push(tok Token) {
	s.pushed = append(s.pushed, tok)
}

// Reset rewinds to the start of the input and drops pushed tokens.
func (s *Scanner) Reset() {
	s.pos = 0
	s.pushed = nil
}

// Remainder drains pushed tokens, re-serialized as SQL, followed by the
// unconsumed input.
func (s *Scanner) Remainder() string {
	rest := s.pending()
	s.pushed = nil
	s.pos = len(s.src)
	return rest
}

func (s *Scanner) pending() string {
	var b strings.Builder
	for i := len(s.pushed) - 1; i >= 0; i-- {
		b.WriteString(s.pushed[i].sql())
	}
	b.WriteString(s.src[s.pos:])
	return b.String()
}

// Near returns a short excerpt of the unconsumed input for error messages.
func (s *Scanner) Near() string {
	rest := []rune(s.pending())
	if len(rest) > nearLength {
		rest = rest[:nearLength]
	}
	return string(rest)
}

// SQL returns the complete input.
func (s *Scanner) SQL() string {
	return s.src
}

// Peek returns the next token without consuming it.
func (s *Scanner) Peek() (Token, bool, error) {
	tok, ok, err := s.Next()
	if err != nil || !ok {
		return tok, ok, err
	}
	s.Push(tok)
	return tok, true, nil
}

// Expect consumes the next token and fails unless it matches.
func (s *Scanner) Expect(kind TokenKind, text string) error {
	tok, ok, err := s.Next()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("expected %s %q: %w", kind, text, errEOF)
	}
	if !tok.Is(kind, text) {
		s.Push(tok)
		return fmt.Errorf("expected %s %q, got %s", kind, text, tok)
	}
	return nil
}

// ExpectKind consumes the next token, which must be of the given kind, and
// returns its text.
func (s *Scanner) ExpectKind(kind TokenKind) (string, error) {
	tok, ok, err := s.Next()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("expected %s: %w", kind, errEOF)
	}
	if tok.Kind != kind {
		s.Push(tok)
		return "", fmt.Errorf("expected %s, got %s", kind, tok)
	}
	return tok.Text, nil
}

// Accept consumes the next token if it matches and reports whether it did.
func (s *Scanner) Accept(kind TokenKind, text string) (bool, error) {
	tok, ok, err := s.Next()
	if err != nil || !ok {
		return false, err
	}
	if !tok.Is(kind, text) {
		s.Push(tok)
		return false, nil
	}
	return true, nil
}

// AcceptKind consumes the next token if it has the given kind.
func (s *Scanner) AcceptKind(kind TokenKind) (string, bool, error) {
	tok, ok, err := s.Next()
	if err != nil || !ok {
		return "", false, err
	}
	if tok.Kind != kind {
		s.Push(tok)
		return "", false, nil
	}
	return tok.Text, true, nil
}

// expectKeywords consumes a run of keywords such as NOT NULL.
func (s *Scanner) expectKeywords(words ...string) error {
	for _, w := range words {
		if err := s.Expect(TokenKeyword, w); err != nil {
			return err
		}
	}
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
