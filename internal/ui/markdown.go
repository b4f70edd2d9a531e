package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// rendererCache holds glamour renderers keyed by width; building one is
// expensive.
var rendererCache sync.Map // map[glamourKey]*glamour.TermRenderer

type glamourKey struct {
	width int
	theme *Theme
}

func getRenderer(width int) (*glamour.TermRenderer, error) {
	key := glamourKey{width: width, theme: currentTheme}
	if cached, ok := rendererCache.Load(key); ok {
		return cached.(*glamour.TermRenderer), nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(GlamourStyleFromTheme(currentTheme)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	// If another goroutine stored first we just discard ours.
	rendererCache.Store(key, renderer)
	return renderer, nil
}

// RenderMarkdown renders markdown with glamour, the alternative to the
// native block renderer. On error the content is returned unchanged.
func RenderMarkdown(content string, width int) string {
	if content == "" {
		return ""
	}
	rendered, err := RenderMarkdownWithError(content, width)
	if err != nil {
		return content
	}
	return rendered
}

// RenderMarkdownWithError renders markdown content and returns any errors.
func RenderMarkdownWithError(content string, width int) (string, error) {
	renderer, err := getRenderer(width)
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rendered), nil
}

// GlamourStyleFromTheme maps the theme onto a glamour style. Margins are
// zero so output lines up with natively rendered blocks.
func GlamourStyleFromTheme(theme *Theme) ansi.StyleConfig {
	primary := string(theme.Primary)
	secondary := string(theme.Secondary)
	success := string(theme.Success)
	warning := string(theme.Warning)
	muted := string(theme.Muted)
	text := string(theme.Text)

	fg := func(c *string) ansi.StylePrimitive { return ansi.StylePrimitive{Color: c} }
	heading := func(prefix string) ansi.StyleBlock {
		return ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: prefix}}
	}

	return ansi.StyleConfig{
		Document: ansi.StyleBlock{StylePrimitive: fg(&text), Margin: uintPtr(0)},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: &warning, Italic: boolPtr(true)},
			Indent:         uintPtr(1),
			IndentToken:    stringPtr("│ "),
		},
		List: ansi.StyleList{LevelIndent: 2, StyleBlock: ansi.StyleBlock{StylePrimitive: fg(&text)}},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{BlockSuffix: "\n", Color: &secondary, Bold: boolPtr(true)},
		},
		H1:             heading("# "),
		H2:             heading("## "),
		H3:             heading("### "),
		H4:             heading("#### "),
		H5:             heading("##### "),
		H6:             heading("###### "),
		Emph:           ansi.StylePrimitive{Color: &warning, Italic: boolPtr(true)},
		Strong:         ansi.StylePrimitive{Color: &primary, Bold: boolPtr(true)},
		Strikethrough:  ansi.StylePrimitive{CrossedOut: boolPtr(true)},
		HorizontalRule: ansi.StylePrimitive{Color: &muted, Format: "\n────────\n"},
		Item:           ansi.StylePrimitive{BlockPrefix: "• "},
		Enumeration:    ansi.StylePrimitive{BlockPrefix: ". ", Color: &secondary},
		Link:           ansi.StylePrimitive{Color: &secondary, Underline: boolPtr(true)},
		LinkText:       fg(&primary),
		Code:           ansi.StyleBlock{StylePrimitive: fg(&primary)},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{StylePrimitive: fg(&text), Margin: uintPtr(2)},
			Chroma: &ansi.Chroma{
				Text:          fg(&text),
				Comment:       fg(&muted),
				Keyword:       fg(&primary),
				KeywordType:   fg(&secondary),
				Name:          fg(&text),
				NameBuiltin:   fg(&secondary),
				NameTag:       fg(&primary),
				NameAttribute: fg(&success),
				NameFunction:  fg(&success),
				LiteralNumber: fg(&secondary),
				LiteralString: fg(&warning),
				Operator:      fg(&text),
				Punctuation:   fg(&text),
			},
		},
		Table: ansi.StyleTable{
			CenterSeparator: stringPtr("┼"),
			ColumnSeparator: stringPtr("│"),
			RowSeparator:    stringPtr("─"),
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func uintPtr(u uint) *uint {
	return &u
}

func stringPtr(s string) *string {
	return &s
}
