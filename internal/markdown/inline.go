package markdown

import "strings"

// SpanKind identifies the style of an inline span.
type SpanKind int

const (
	SpanText SpanKind = iota
	SpanBold
	SpanItalic
	SpanCode
	SpanLink
)

var spanKindNames = [...]string{
	SpanText:   "text",
	SpanBold:   "bold",
	SpanItalic: "italic",
	SpanCode:   "code",
	SpanLink:   "link",
}

func (k SpanKind) String() string {
	if k < 0 || int(k) >= len(spanKindNames) {
		return "unknown"
	}
	return spanKindNames[k]
}

// Span is a styled run of text. Text is terminal: emphasis inside a span
// is not parsed further. Href is only set for links.
type Span struct {
	Kind SpanKind
	Text string
	Href string
}

// PlainText concatenates the visible text of spans, dropping markup.
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// span patterns in precedence order; the two bold forms share a rank
const (
	patBoldStar = iota
	patBoldUnderscore
	patItalic
	patCode
	patLink
	numPatterns
)

type match struct {
	found      bool
	start, end int // whole match, delimiters included
	text       string
	href       string
}

var finders = [numPatterns]func(s string, from int) match{
	patBoldStar:       func(s string, from int) match { return findPair(s, from, "**") },
	patBoldUnderscore: func(s string, from int) match { return findPair(s, from, "__") },
	patItalic:         func(s string, from int) match { return findSingle(s, from, '*') },
	patCode:           func(s string, from int) match { return findSingle(s, from, '`') },
	patLink:           findLink,
}

// scanner caches the next match of every pattern. A cached match stays
// valid while it starts at or after the cursor, and a failed search stays
// failed, so each pattern only searches again once the cursor passes it.
type scanner struct {
	line     string
	cache    [numPatterns]match
	searched [numPatterns]bool
}

func (sc *scanner) next(p, cursor int) match {
	c := &sc.cache[p]
	if !sc.searched[p] || (c.found && c.start < cursor) {
		*c = finders[p](sc.line, cursor)
		sc.searched[p] = true
	}
	return *c
}

// Tokenize splits a line into inline spans.
//
// Each step takes the highest-precedence pattern (bold, italic, code, link)
// that matches anywhere in the unconsumed text, emits the text before it as
// plain text and continues after the match. When nothing matches the rest
// is emitted as plain text, so unbalanced delimiters are kept literally.
func Tokenize(line string) []Span {
	spans := make([]Span, 0, 4)
	if line == "" {
		return spans
	}

	sc := &scanner{line: line}
	cursor := 0
	for cursor < len(line) {
		m, kind := sc.step(cursor)
		if !m.found {
			spans = append(spans, Span{Kind: SpanText, Text: line[cursor:]})
			break
		}
		if m.start > cursor {
			spans = append(spans, Span{Kind: SpanText, Text: line[cursor:m.start]})
		}
		spans = append(spans, Span{Kind: kind, Text: m.text, Href: m.href})
		cursor = m.end
	}
	return spans
}

func (sc *scanner) step(cursor int) (match, SpanKind) {
	if m := leftmost(sc.next(patBoldStar, cursor), sc.next(patBoldUnderscore, cursor)); m.found {
		return m, SpanBold
	}
	// A single * directly after another * belongs to a bold delimiter
	// that failed to match.
	if m := sc.next(patItalic, cursor); m.found && (m.start == cursor || sc.line[m.start-1] != '*') {
		return m, SpanItalic
	}
	if m := sc.next(patCode, cursor); m.found {
		return m, SpanCode
	}
	if m := sc.next(patLink, cursor); m.found {
		return m, SpanLink
	}
	return match{}, SpanText
}

func leftmost(a, b match) match {
	switch {
	case !a.found:
		return b
	case !b.found:
		return a
	case b.start < a.start:
		return b
	default:
		return a
	}
}

// findPair finds delim, a non-empty body, then the next delim. If the
// leftmost opening has no closer, no later opening can have one either.
func findPair(s string, from int, delim string) match {
	i := strings.Index(s[from:], delim)
	if i < 0 {
		return match{}
	}
	open := from + i
	bodyStart := open + len(delim)
	if bodyStart+1 > len(s) {
		return match{}
	}
	j := strings.Index(s[bodyStart+1:], delim)
	if j < 0 {
		return match{}
	}
	bodyEnd := bodyStart + 1 + j
	return match{
		found: true,
		start: open,
		end:   bodyEnd + len(delim),
		text:  s[bodyStart:bodyEnd],
	}
}

// findSingle finds the leftmost delim, a non-empty body free of delim,
// and a closing delim.
func findSingle(s string, from int, delim byte) match {
	for i := from; i < len(s); {
		k := strings.IndexByte(s[i:], delim)
		if k < 0 {
			return match{}
		}
		open := i + k
		j := strings.IndexByte(s[open+1:], delim)
		if j < 0 {
			return match{}
		}
		if j == 0 {
			i = open + 1
			continue
		}
		shut := open + 1 + j
		return match{found: true, start: open, end: shut + 1, text: s[open+1 : shut]}
	}
	return match{}
}

// findLink finds the leftmost [label](href) with non-empty label and href.
func findLink(s string, from int) match {
	for i := from; i < len(s); {
		k := strings.IndexByte(s[i:], '[')
		if k < 0 {
			return match{}
		}
		open := i + k
		c := strings.IndexByte(s[open+1:], ']')
		if c < 0 {
			return match{}
		}
		closeLabel := open + 1 + c
		if c == 0 {
			i = open + 1
			continue
		}
		// Every '[' before closeLabel shares the same label end and
		// therefore the same suffix check.
		if closeLabel+1 < len(s) && s[closeLabel+1] == '(' {
			p := strings.IndexByte(s[closeLabel+2:], ')')
			if p < 0 {
				return match{}
			}
			if p > 0 {
				hrefEnd := closeLabel + 2 + p
				return match{
					found: true,
					start: open,
					end:   hrefEnd + 1,
					text:  s[open+1 : closeLabel],
					href:  s[closeLabel+2 : hrefEnd],
				}
			}
		}
		i = closeLabel + 1
	}
	return match{}
}
