package ui

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultCodeStyle is the chroma style used when none is configured.
const DefaultCodeStyle = "monokai"

// languageAliases maps fence tags the security assistant tends to emit onto
// chroma lexer names. An empty target disables highlighting for the tag.
var languageAliases = map[string]string{
	"ossec":      "xml",
	"ossec.conf": "xml",
	"wazuh":      "xml",
	"rule":       "xml",
	"decoder":    "xml",
	"shell":      "bash",
	"sh":         "bash",
	"console":    "bash",
	"ps":         "powershell",
	"ps1":        "powershell",
	"jsonl":      "json",
	"ndjson":     "json",
	"yml":        "yaml",
	"log":        "",
	"syslog":     "",
	"text":       "",
	"plaintext":  "",
}

// Highlighter colours the lines of a fenced code block.
type Highlighter struct {
	lexer chroma.Lexer
	style *chroma.Style
}

// NewHighlighter returns nil when language has no lexer.
func NewHighlighter(language, styleName string) *Highlighter {
	language = strings.ToLower(strings.TrimSpace(language))
	if alias, ok := languageAliases[language]; ok {
		language = alias
	}
	if language == "" {
		return nil
	}
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Match("file." + language)
	}
	if lexer == nil {
		return nil
	}

	if styleName == "" {
		styleName = DefaultCodeStyle
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(lexer), style: style}
}

// HighlightLine highlights a single line.
func (h *Highlighter) HighlightLine(line string) string {
	return h.HighlightLines([]string{line})[0]
}

// HighlightLines tokenises the block as a whole so multi-line strings and
// comments keep their state, then splits the result back into lines. Every
// returned line closes its own escape sequences. On a lexer error the input
// is returned unchanged.
func (h *Highlighter) HighlightLines(lines []string) []string {
	if h == nil || len(lines) == 0 {
		return lines
	}
	iterator, err := h.lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return lines
	}

	out := make([]string, 0, len(lines))
	var cur strings.Builder
	for token := iterator(); token != chroma.EOF; token = iterator() {
		sgr := h.sgr(token.Type)
		for i, part := range strings.Split(token.Value, "\n") {
			if i > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			if part == "" {
				continue
			}
			if sgr == "" {
				cur.WriteString(part)
			} else {
				fmt.Fprintf(&cur, "\x1b[%sm%s\x1b[0m", sgr, part)
			}
		}
	}
	out = append(out, cur.String())

	// Lexers may add a trailing newline token.
	if len(out) > len(lines) {
		out = out[:len(lines)]
	}
	for len(out) < len(lines) {
		out = append(out, "")
	}
	return out
}

// sgr builds the foreground-only escape parameters for a token type. The
// style background is ignored so blocks sit on the terminal's own colour.
func (h *Highlighter) sgr(t chroma.TokenType) string {
	entry := h.style.Get(t)
	var codes []string
	if entry.Colour.IsSet() {
		codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", entry.Colour.Red(), entry.Colour.Green(), entry.Colour.Blue()))
	}
	if entry.Bold == chroma.Yes {
		codes = append(codes, "1")
	}
	if entry.Italic == chroma.Yes {
		codes = append(codes, "3")
	}
	if entry.Underline == chroma.Yes {
		codes = append(codes, "4")
	}
	return strings.Join(codes, ";")
}
