package markdown

import (
	"regexp"
	"strings"
)

// Options tweaks block parsing.
type Options struct {
	// DropUnterminatedFence discards code buffered after an opening fence
	// that is never closed. By default that code is emitted as a CodeBlock
	// with Unterminated set.
	DropUnterminatedFence bool
}

var (
	headerRe         = regexp.MustCompile(`^(#{1,6})\s+`)
	unorderedItemRe  = regexp.MustCompile(`^\s*[-*+]\s+`)
	orderedItemRe    = regexp.MustCompile(`^\s*\d+\.\s+`)
	horizontalRuleRe = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})$`)
	blockquoteRe     = regexp.MustCompile(`^>\s*`)
)

const fence = "```"

type listKind int

const (
	listNone listKind = iota
	listUnordered
	listOrdered
)

// parser holds the state of one Render call.
type parser struct {
	opts Options
	out  []Block

	insideCode bool
	codeLang   string
	codeBuf    []string

	listKind  listKind
	listItems []string
}

// Render parses text into blocks using default options.
func Render(text string) []Block {
	return Options{}.Render(text)
}

// Render parses text into blocks. It never fails; unrecognised input
// becomes paragraphs.
func (o Options) Render(text string) []Block {
	p := &parser{opts: o, out: make([]Block, 0, 8)}
	if text == "" {
		return p.out
	}
	for _, line := range strings.Split(text, "\n") {
		p.line(strings.TrimSuffix(line, "\r"))
	}
	p.finish()
	return p.out
}

func (p *parser) line(line string) {
	if strings.HasPrefix(line, fence) {
		if p.insideCode {
			p.emitCode(false)
			return
		}
		p.flushList()
		p.insideCode = true
		p.codeLang = strings.TrimSpace(line[len(fence):])
		p.codeBuf = nil
		return
	}

	if p.insideCode {
		p.codeBuf = append(p.codeBuf, line)
		return
	}

	if m := headerRe.FindStringSubmatch(line); m != nil {
		p.flushList()
		p.out = append(p.out, Header{
			Level: len(m[1]),
			Spans: Tokenize(line[len(m[0]):]),
		})
		return
	}

	if loc := unorderedItemRe.FindStringIndex(line); loc != nil {
		p.addItem(listUnordered, line[loc[1]:])
		return
	}

	if loc := orderedItemRe.FindStringIndex(line); loc != nil {
		p.addItem(listOrdered, line[loc[1]:])
		return
	}

	trimmed := strings.TrimSpace(line)

	if horizontalRuleRe.MatchString(trimmed) {
		p.flushList()
		p.out = append(p.out, HorizontalRule{})
		return
	}

	if loc := blockquoteRe.FindStringIndex(line); loc != nil {
		p.flushList()
		p.out = append(p.out, Blockquote{Spans: Tokenize(line[loc[1]:])})
		return
	}

	if trimmed == "" {
		p.flushList()
		return
	}

	p.flushList()
	p.out = append(p.out, Paragraph{Spans: Tokenize(line)})
}

func (p *parser) addItem(kind listKind, text string) {
	if p.listKind != kind {
		p.flushList()
		p.listKind = kind
	}
	p.listItems = append(p.listItems, text)
}

// flushList emits the pending list, if any. Safe to call repeatedly.
func (p *parser) flushList() {
	if len(p.listItems) > 0 {
		items := make([][]Span, len(p.listItems))
		for i, it := range p.listItems {
			items[i] = Tokenize(it)
		}
		p.out = append(p.out, List{Ordered: p.listKind == listOrdered, Items: items})
	}
	p.listItems = nil
	p.listKind = listNone
}

func (p *parser) emitCode(unterminated bool) {
	lines := p.codeBuf
	if lines == nil {
		lines = []string{}
	}
	p.out = append(p.out, CodeBlock{
		Language:     p.codeLang,
		Lines:        lines,
		Unterminated: unterminated,
	})
	p.insideCode = false
	p.codeLang = ""
	p.codeBuf = nil
}

func (p *parser) finish() {
	p.flushList()
	if p.insideCode && !p.opts.DropUnterminatedFence {
		p.emitCode(true)
	}
}
