package serve

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/samsaffron/wazuh-chat/internal/markdown"
)

const telegramMaxMessageLen = 4000 // Telegram limit is 4096; leave margin

const telegramRule = "──────────"

// BlocksToTelegramHTML renders blocks in the HTML subset accepted by the
// Telegram Bot API:
//
//	<b>, <i>, <code>, <pre>, <a href>, <blockquote>
//
// Text is escaped; blocks are separated by a blank line.
func BlocksToTelegramHTML(blocks []markdown.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, blockHTML(b))
	}
	return strings.Join(parts, "\n\n")
}

func blockHTML(b markdown.Block) string {
	switch b := b.(type) {
	case markdown.Paragraph:
		return spansHTML(b.Spans)
	case markdown.Header:
		return "<b>" + spansHTML(b.Spans) + "</b>"
	case markdown.List:
		items := make([]string, len(b.Items))
		for i, item := range b.Items {
			items[i] = listItemHTML(b.Ordered, i, item)
		}
		return strings.Join(items, "\n")
	case markdown.CodeBlock:
		return codeHTML(b.Language, b.Code())
	case markdown.HorizontalRule:
		return telegramRule
	case markdown.Blockquote:
		return "<blockquote>" + spansHTML(b.Spans) + "</blockquote>"
	}
	return ""
}

func listItemHTML(ordered bool, i int, spans []markdown.Span) string {
	if ordered {
		return strconv.Itoa(i+1) + ". " + spansHTML(spans)
	}
	return "• " + spansHTML(spans)
}

func codeHTML(lang, code string) string {
	open, closing := codeTags(lang)
	return open + html.EscapeString(code) + closing
}

func codeTags(lang string) (string, string) {
	if lang == "" {
		return "<pre>", "</pre>"
	}
	return `<pre><code class="language-` + html.EscapeString(lang) + `">`, "</code></pre>"
}

func spansHTML(spans []markdown.Span) string {
	var sb strings.Builder
	for _, s := range spans {
		open, closing := spanTags(s)
		sb.WriteString(open + html.EscapeString(s.Text) + closing)
	}
	return sb.String()
}

func spanTags(s markdown.Span) (string, string) {
	switch s.Kind {
	case markdown.SpanBold:
		return "<b>", "</b>"
	case markdown.SpanItalic:
		return "<i>", "</i>"
	case markdown.SpanCode:
		return "<code>", "</code>"
	case markdown.SpanLink:
		return `<a href="` + html.EscapeString(s.Href) + `">`, "</a>"
	}
	return "", ""
}

// TelegramChunks renders blocks into messages of at most limit bytes.
// Messages break between blocks; a single block longer than limit is
// split on line or word boundaries and keeps its tags balanced.
func TelegramChunks(blocks []markdown.Block, limit int) []string {
	if limit <= 0 {
		limit = telegramMaxMessageLen
	}
	var pieces []string
	for _, b := range blocks {
		if h := blockHTML(b); len(h) <= limit {
			pieces = append(pieces, h)
			continue
		}
		pieces = append(pieces, splitBlock(b, limit)...)
	}
	return pack(pieces, "\n\n", limit)
}

func splitBlock(b markdown.Block, limit int) []string {
	switch b := b.(type) {
	case markdown.CodeBlock:
		open, closing := codeTags(b.Language)
		inner := limit - len(open) - len(closing)
		var escaped []string
		for _, line := range b.Lines {
			escaped = append(escaped, hardSplit(html.EscapeString(line), inner)...)
		}
		var out []string
		for _, group := range pack(escaped, "\n", inner) {
			out = append(out, open+group+closing)
		}
		return out
	case markdown.List:
		var items []string
		for i, item := range b.Items {
			if h := listItemHTML(b.Ordered, i, item); len(h) <= limit {
				items = append(items, h)
				continue
			}
			marker := "• "
			if b.Ordered {
				marker = strconv.Itoa(i+1) + ". "
			}
			items = append(items, splitSpans(marker, item, limit)...)
		}
		return pack(items, "\n", limit)
	case markdown.Paragraph:
		return splitSpans("", b.Spans, limit)
	case markdown.Header:
		return wrapEach(splitSpans("", b.Spans, limit-len("<b></b>")), "<b>", "</b>")
	case markdown.Blockquote:
		return wrapEach(splitSpans("", b.Spans, limit-len("<blockquote></blockquote>")), "<blockquote>", "</blockquote>")
	}
	return nil
}

func wrapEach(chunks []string, open, closing string) []string {
	for i, c := range chunks {
		chunks[i] = open + c + closing
	}
	return chunks
}

type word struct {
	span  int    // index of the span the word came from
	text  string // escaped
	space bool   // whitespace precedes it
}

// splitSpans breaks spans between words into chunks of at most limit
// bytes. Formatting survives the cut: a span crossing a chunk edge is
// closed at the end of one chunk and reopened at the start of the next.
// prefix, such as a list marker, starts the first chunk.
func splitSpans(prefix string, spans []markdown.Span, limit int) []string {
	var words []word
	space := false
	for i, s := range spans {
		open, closing := spanTags(s)
		room := max(1, limit-len(prefix)-len(open)-len(closing))
		text := s.Text
		for {
			trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
			space = space || len(trimmed) < len(text)
			if text = trimmed; text == "" {
				break
			}
			end := strings.IndexFunc(text, unicode.IsSpace)
			if end < 0 {
				end = len(text)
			}
			for j, part := range hardSplit(html.EscapeString(text[:end]), room) {
				words = append(words, word{span: i, text: part, space: space && j == 0})
			}
			space = false
			text = text[end:]
		}
	}

	openLen := func(i int) int {
		o, _ := spanTags(spans[i])
		return len(o)
	}
	closeLen := func(i int) int {
		if i < 0 {
			return 0
		}
		_, c := spanTags(spans[i])
		return len(c)
	}

	var out []string
	var cur strings.Builder
	cur.WriteString(prefix)
	open, empty := -1, true
	closeOpen := func() {
		if open >= 0 {
			_, c := spanTags(spans[open])
			cur.WriteString(c)
			open = -1
		}
	}
	for _, w := range words {
		sep := ""
		if w.space && !empty {
			sep = " "
		}
		need := len(sep) + len(w.text) + closeLen(w.span)
		if w.span != open {
			need += closeLen(open) + openLen(w.span)
		}
		if !empty && cur.Len()+need > limit {
			closeOpen()
			out = append(out, cur.String())
			cur.Reset()
			empty, sep = true, ""
		}
		if w.span != open {
			closeOpen()
			cur.WriteString(sep)
			o, _ := spanTags(spans[w.span])
			cur.WriteString(o)
			open = w.span
		} else {
			cur.WriteString(sep)
		}
		cur.WriteString(w.text)
		empty = false
	}
	closeOpen()
	if !empty {
		out = append(out, cur.String())
	}
	return out
}

// pack greedily joins pieces with sep while staying within limit.
func pack(pieces []string, sep string, limit int) []string {
	var out []string
	var cur strings.Builder
	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(sep)+len(p) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// hardSplit cuts escaped text into runs of at most limit bytes without
// breaking a rune or an entity such as &amp;.
func hardSplit(s string, limit int) []string {
	if limit <= 0 || len(s) <= limit {
		return []string{s}
	}
	var out []string
	for len(s) > limit {
		cut := limit
		if amp := strings.LastIndexByte(s[:cut], '&'); amp != -1 && !strings.Contains(s[amp:cut], ";") {
			cut = amp
		}
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
