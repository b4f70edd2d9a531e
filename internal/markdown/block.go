// Package markdown parses assistant replies into a flat sequence of blocks.
//
// Parsing is line oriented: each line either continues the current
// multi-line construct (fenced code, a list) or flushes it and starts a
// new block. Inline markup inside a block is tokenized into spans with no
// nesting. The supported subset is deliberately small; anything that does
// not match degrades to a paragraph of plain text.
package markdown

import "strings"

// BlockKind identifies the concrete type of a Block.
type BlockKind int

const (
	KindParagraph BlockKind = iota
	KindHeader
	KindUnorderedList
	KindOrderedList
	KindCodeBlock
	KindHorizontalRule
	KindBlockquote
)

var blockKindNames = [...]string{
	KindParagraph:      "paragraph",
	KindHeader:         "header",
	KindUnorderedList:  "unordered_list",
	KindOrderedList:    "ordered_list",
	KindCodeBlock:      "code_block",
	KindHorizontalRule: "horizontal_rule",
	KindBlockquote:     "blockquote",
}

func (k BlockKind) String() string {
	if k < 0 || int(k) >= len(blockKindNames) {
		return "unknown"
	}
	return blockKindNames[k]
}

// Block is one structural unit of a rendered reply. The set of
// implementations is closed to this package.
type Block interface {
	Kind() BlockKind
	block()
}

// Paragraph is a single line of running text.
type Paragraph struct {
	Spans []Span
}

// Header is an ATX heading of level 1 through 6.
type Header struct {
	Level int
	Spans []Span
}

// List is a run of consecutive list items of one kind.
type List struct {
	Ordered bool
	Items   [][]Span
}

// CodeBlock is a fenced code block. Lines are kept verbatim.
// Unterminated is set when the input ended before the closing fence.
type CodeBlock struct {
	Language     string
	Lines        []string
	Unterminated bool
}

// HorizontalRule is a thematic break.
type HorizontalRule struct{}

// Blockquote is a single quoted line.
type Blockquote struct {
	Spans []Span
}

func (Paragraph) Kind() BlockKind      { return KindParagraph }
func (Header) Kind() BlockKind         { return KindHeader }
func (CodeBlock) Kind() BlockKind      { return KindCodeBlock }
func (HorizontalRule) Kind() BlockKind { return KindHorizontalRule }
func (Blockquote) Kind() BlockKind     { return KindBlockquote }

func (l List) Kind() BlockKind {
	if l.Ordered {
		return KindOrderedList
	}
	return KindUnorderedList
}

func (Paragraph) block()      {}
func (Header) block()         {}
func (List) block()           {}
func (CodeBlock) block()      {}
func (HorizontalRule) block() {}
func (Blockquote) block()     {}

// Code returns the block's lines joined with newlines.
func (c CodeBlock) Code() string {
	return strings.Join(c.Lines, "\n")
}
