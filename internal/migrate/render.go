package migrate

import (
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/koba/schema-sync/internal/diff"
)

// RenderOptions controls plan output.
type RenderOptions struct {
	Color bool
	Style string // chroma style name for SQL, e.g. "monokai"
}

// Renderer prints plans for review. Without colour the output is exactly
// Plan.String for every non-empty plan.
type Renderer struct {
	opts   RenderOptions
	lexer  chroma.Lexer
	style  *chroma.Style
	tokens map[chroma.TokenType]lipgloss.Style

	header  lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	warning lipgloss.Style
}

// NewRenderer creates a Renderer. An unknown style falls back to chroma's
// default.
func NewRenderer(opts RenderOptions) *Renderer {
	l := lexers.Get("mysql")
	if l == nil {
		l = lexers.Get("sql")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return &Renderer{
		opts:    opts,
		lexer:   chroma.Coalesce(l),
		style:   styles.Get(opts.Style),
		tokens:  make(map[chroma.TokenType]lipgloss.Style),
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		added:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		removed: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
	}
}

// Render writes every non-empty plan, or a note that nothing differs.
func (r *Renderer) Render(w io.Writer, plans []*diff.Plan) error {
	var b strings.Builder
	for _, p := range plans {
		if p.Empty() {
			continue
		}
		if r.opts.Color {
			r.colored(&b, p)
		} else {
			b.WriteString(p.String())
		}
	}
	if b.Len() == 0 {
		b.WriteString("No differences found.\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) colored(b *strings.Builder, p *diff.Plan) {
	b.WriteString(r.header.Render("--------"+p.Table+"--------") + "\n")
	for _, line := range p.Display() {
		switch {
		case strings.HasPrefix(line, "+"):
			line = r.added.Render(line)
		case strings.HasPrefix(line, "-"):
			line = r.removed.Render(line)
		case strings.HasPrefix(line, "!"):
			line = r.warning.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(r.header.Render("=============================") + "\n")
	for _, stmt := range p.Statements() {
		b.WriteString(r.highlight(stmt) + ";\n")
	}
}

// highlight styles sql token by token. Newlines are written unstyled.
func (r *Renderer) highlight(sql string) string {
	iter, err := r.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	for _, tok := range iter.Tokens() {
		if tok.Value == "" {
			continue
		}
		style, ok := r.tokenStyle(tok.Type)
		lines := strings.Split(tok.Value, "\n")
		for i, line := range lines {
			if line != "" {
				if ok {
					line = style.Render(line)
				}
				b.WriteString(line)
			}
			if i < len(lines)-1 {
				b.WriteByte('\n')
			}
		}
	}

	out := b.String()
	if !strings.HasSuffix(sql, "\n") {
		out = strings.TrimSuffix(out, "\n")
	}
	return out
}

func (r *Renderer) tokenStyle(tt chroma.TokenType) (lipgloss.Style, bool) {
	if s, ok := r.tokens[tt]; ok {
		return s, true
	}
	entry := r.style.Get(tt)
	if !entry.Colour.IsSet() {
		return lipgloss.Style{}, false
	}
	s := lipgloss.NewStyle().Foreground(lipgloss.Color(entry.Colour.String()))
	if entry.Bold == chroma.Yes {
		s = s.Bold(true)
	}
	r.tokens[tt] = s
	return s, true
}
