package markdown

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func spans(ss ...Span) []Span { return ss }

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Block
	}{
		{
			name: "empty",
			in:   "",
			want: []Block{},
		},
		{
			name: "fenced json",
			in:   "```json\n{\"a\":1}\n```",
			want: []Block{CodeBlock{Language: "json", Lines: []string{`{"a":1}`}}},
		},
		{
			name: "list flushed by blank line",
			in:   "- item1\n- item2\n\nParagraph.",
			want: []Block{
				List{Items: [][]Span{spans(text("item1")), spans(text("item2"))}},
				Paragraph{Spans: spans(text("Paragraph."))},
			},
		},
		{
			name: "code content is not tokenized",
			in:   "```\n**not bold**\n# not a header\n```",
			want: []Block{CodeBlock{Lines: []string{"**not bold**", "# not a header"}}},
		},
		{
			name: "empty fence",
			in:   "```\n```",
			want: []Block{CodeBlock{Lines: []string{}}},
		},
		{
			name: "headers",
			in:   "# Title\n###### Six\n####### Seven\n#NoSpace",
			want: []Block{
				Header{Level: 1, Spans: spans(text("Title"))},
				Header{Level: 6, Spans: spans(text("Six"))},
				Paragraph{Spans: spans(text("####### Seven"))},
				Paragraph{Spans: spans(text("#NoSpace"))},
			},
		},
		{
			name: "header flushes list",
			in:   "- a\n## Next",
			want: []Block{
				List{Items: [][]Span{spans(text("a"))}},
				Header{Level: 2, Spans: spans(text("Next"))},
			},
		},
		{
			name: "list kind switch",
			in:   "1. first\n2. **second**\n- third\n+ fourth",
			want: []Block{
				List{Ordered: true, Items: [][]Span{spans(text("first")), spans(bold("second"))}},
				List{Items: [][]Span{spans(text("third")), spans(text("fourth"))}},
			},
		},
		{
			name: "indented items",
			in:   "  * nested\n   10. ten",
			want: []Block{
				List{Items: [][]Span{spans(text("nested"))}},
				List{Ordered: true, Items: [][]Span{spans(text("ten"))}},
			},
		},
		{
			name: "list at end of input",
			in:   "Intro\n- a\n- b",
			want: []Block{
				Paragraph{Spans: spans(text("Intro"))},
				List{Items: [][]Span{spans(text("a")), spans(text("b"))}},
			},
		},
		{
			name: "horizontal rules",
			in:   "---\n***\n___\n- - -\n--",
			want: []Block{
				HorizontalRule{},
				HorizontalRule{},
				HorizontalRule{},
				List{Items: [][]Span{spans(text("- -"))}},
				Paragraph{Spans: spans(text("--"))},
			},
		},
		{
			name: "blockquote",
			in:   "> quoted **text**\n>bare",
			want: []Block{
				Blockquote{Spans: spans(text("quoted "), bold("text"))},
				Blockquote{Spans: spans(text("bare"))},
			},
		},
		{
			name: "fence flushes list",
			in:   "- a\n```sh\nls -la\n```\nafter",
			want: []Block{
				List{Items: [][]Span{spans(text("a"))}},
				CodeBlock{Language: "sh", Lines: []string{"ls -la"}},
				Paragraph{Spans: spans(text("after"))},
			},
		},
		{
			name: "unterminated fence flushed",
			in:   "Look:\n```go\nfmt.Println()\n",
			want: []Block{
				Paragraph{Spans: spans(text("Look:"))},
				CodeBlock{Language: "go", Lines: []string{"fmt.Println()", ""}, Unterminated: true},
			},
		},
		{
			name: "crlf",
			in:   "# Hi\r\ntext\r\n",
			want: []Block{
				Header{Level: 1, Spans: spans(text("Hi"))},
				Paragraph{Spans: spans(text("text"))},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Render(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestRenderDropUnterminatedFence(t *testing.T) {
	got := Options{DropUnterminatedFence: true}.Render("- a\n```go\nfmt.Println()")
	want := []Block{List{Items: [][]Span{spans(text("a"))}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockKind(t *testing.T) {
	tests := []struct {
		block Block
		want  string
	}{
		{Paragraph{}, "paragraph"},
		{Header{}, "header"},
		{List{}, "unordered_list"},
		{List{Ordered: true}, "ordered_list"},
		{CodeBlock{}, "code_block"},
		{HorizontalRule{}, "horizontal_rule"},
		{Blockquote{}, "blockquote"},
	}
	for _, tt := range tests {
		if got := tt.block.Kind().String(); got != tt.want {
			t.Errorf("%T.Kind() = %q, want %q", tt.block, got, tt.want)
		}
	}
}

func TestDocumentJSON(t *testing.T) {
	doc := Document(Render("# Hi\n1. [x](http://y)\n---\n```py\npass\n```"))
	got, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[{"type":"header","level":1,"spans":[{"type":"text","text":"Hi"}]},` +
		`{"type":"ordered_list","items":[[{"type":"link","text":"x","href":"http://y"}]]},` +
		`{"type":"horizontal_rule"},` +
		`{"type":"code_block","language":"py","lines":["pass"]}]`
	if string(got) != want {
		t.Errorf("Marshal() =\n%s\nwant\n%s", got, want)
	}
}

func FuzzRender(f *testing.F) {
	for _, s := range []string{
		"",
		"- item1\n- item2\n\nParagraph.",
		"```json\n{\"a\":1}\n```",
		"```\nunterminated",
		"# h\n> q\n1. o\n---\n",
	} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, s string) {
		for _, b := range Render(s) {
			switch v := b.(type) {
			case Header:
				if v.Level < 1 || v.Level > 6 {
					t.Fatalf("header level %d", v.Level)
				}
			case List:
				if len(v.Items) == 0 {
					t.Fatalf("empty list emitted for %q", s)
				}
			}
		}
	})
}
