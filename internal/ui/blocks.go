package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/samsaffron/wazuh-chat/internal/markdown"
)

const (
	defaultBlockWidth = 80
	minBlockWidth     = 20
)

// BlockRenderer draws parsed markdown blocks for the terminal.
// Plain disables all styling, producing text suitable for pipes and logs.
type BlockRenderer struct {
	Width     int
	Theme     *Theme
	CodeStyle string
	Plain     bool
}

// NewBlockRenderer returns a renderer for the current theme. Styling is
// turned off when the terminal reports no color support.
func NewBlockRenderer(width int, codeStyle string) *BlockRenderer {
	return &BlockRenderer{
		Width:     width,
		Theme:     GetTheme(),
		CodeStyle: codeStyle,
		Plain:     lipgloss.ColorProfile() == termenv.Ascii,
	}
}

// Render draws blocks separated by blank lines.
func (r *BlockRenderer) Render(blocks []markdown.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if s := r.RenderBlock(b); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// RenderBlock draws a single block.
func (r *BlockRenderer) RenderBlock(b markdown.Block) string {
	width := r.width()
	switch b := b.(type) {
	case markdown.Header:
		return r.header(b, width)
	case markdown.Paragraph:
		return wordwrap.String(r.spans(b.Spans), width)
	case markdown.List:
		return r.list(b, width)
	case markdown.CodeBlock:
		return r.code(b)
	case markdown.HorizontalRule:
		return r.style(lipgloss.NewStyle().Foreground(r.theme().Muted)).Render(strings.Repeat("─", width))
	case markdown.Blockquote:
		return r.quote(b, width)
	default:
		return ""
	}
}

func (r *BlockRenderer) width() int {
	switch {
	case r.Width <= 0:
		return defaultBlockWidth
	case r.Width < minBlockWidth:
		return minBlockWidth
	default:
		return r.Width
	}
}

func (r *BlockRenderer) theme() *Theme {
	if r.Theme == nil {
		return GetTheme()
	}
	return r.Theme
}

// style returns s, or an empty style in plain mode.
func (r *BlockRenderer) style(s lipgloss.Style) lipgloss.Style {
	if r.Plain {
		return lipgloss.NewStyle()
	}
	return s
}

func (r *BlockRenderer) header(h markdown.Header, width int) string {
	t := r.theme()
	s := lipgloss.NewStyle().Bold(true)
	switch h.Level {
	case 1:
		s = s.Foreground(t.Secondary).Underline(true)
	case 2:
		s = s.Foreground(t.Secondary)
	default:
		s = s.Foreground(t.Text)
	}
	return r.style(s).Render(wordwrap.String(markdown.PlainText(h.Spans), width))
}

func (r *BlockRenderer) list(l markdown.List, width int) string {
	bullet := r.style(lipgloss.NewStyle().Foreground(r.theme().Secondary))
	markerW := 2
	if l.Ordered {
		markerW = len(fmt.Sprintf("%d. ", len(l.Items)))
	}

	lines := make([]string, 0, len(l.Items))
	for i, item := range l.Items {
		marker := "• "
		if l.Ordered {
			marker = fmt.Sprintf("%*s", markerW, fmt.Sprintf("%d. ", i+1))
		}
		body := wordwrap.String(r.spans(item), max(width-markerW, 10))
		first, rest, _ := strings.Cut(body, "\n")
		line := bullet.Render(marker) + first
		if rest != "" {
			line += "\n" + indent.String(rest, uint(markerW))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (r *BlockRenderer) code(c markdown.CodeBlock) string {
	muted := r.style(lipgloss.NewStyle().Foreground(r.theme().Muted))
	var h *Highlighter
	if !r.Plain {
		h = NewHighlighter(c.Language, r.CodeStyle)
	}

	var sb strings.Builder
	if c.Language != "" {
		sb.WriteString(muted.Render(c.Language))
		sb.WriteString("\n")
	}
	for i, line := range h.HighlightLines(c.Lines) {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  ")
		sb.WriteString(line)
	}
	if c.Unterminated {
		if len(c.Lines) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(muted.Render("  (unterminated code block)"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (r *BlockRenderer) quote(q markdown.Blockquote, width int) string {
	t := r.theme()
	bar := r.style(lipgloss.NewStyle().Foreground(t.Muted)).Render("│ ")
	body := wordwrap.String(r.spans(q.Spans), max(width-2, 10))
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = bar + r.style(lipgloss.NewStyle().Foreground(t.Warning).Italic(true)).Render(l)
	}
	return strings.Join(lines, "\n")
}

func (r *BlockRenderer) spans(spans []markdown.Span) string {
	t := r.theme()
	var sb strings.Builder
	for _, sp := range spans {
		switch sp.Kind {
		case markdown.SpanBold:
			sb.WriteString(r.style(lipgloss.NewStyle().Bold(true).Foreground(t.Primary)).Render(sp.Text))
		case markdown.SpanItalic:
			sb.WriteString(r.style(lipgloss.NewStyle().Italic(true)).Render(sp.Text))
		case markdown.SpanCode:
			sb.WriteString(r.style(lipgloss.NewStyle().Foreground(t.Primary)).Render(sp.Text))
		case markdown.SpanLink:
			sb.WriteString(r.style(lipgloss.NewStyle().Foreground(t.Secondary).Underline(true)).Render(sp.Text))
			if sp.Href != "" && sp.Href != sp.Text {
				sb.WriteString(r.style(lipgloss.NewStyle().Foreground(t.Muted)).Render(" (" + sp.Href + ")"))
			}
		default:
			sb.WriteString(sp.Text)
		}
	}
	return sb.String()
}
