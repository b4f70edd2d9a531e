package markdown

import "encoding/json"

// Document is a parsed reply. It marshals to a list of objects tagged
// with a "type" field, one per block.
type Document []Block

type jsonSpan struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

type jsonBlock struct {
	Type         string       `json:"type"`
	Level        int          `json:"level,omitempty"`
	Spans        []jsonSpan   `json:"spans,omitempty"`
	Items        [][]jsonSpan `json:"items,omitempty"`
	Language     string       `json:"language,omitempty"`
	Lines        []string     `json:"lines,omitempty"`
	Unterminated bool         `json:"unterminated,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make([]jsonBlock, 0, len(d))
	for _, b := range d {
		jb := jsonBlock{Type: b.Kind().String()}
		switch v := b.(type) {
		case Paragraph:
			jb.Spans = toJSONSpans(v.Spans)
		case Header:
			jb.Level = v.Level
			jb.Spans = toJSONSpans(v.Spans)
		case List:
			jb.Items = make([][]jsonSpan, len(v.Items))
			for i, it := range v.Items {
				jb.Items[i] = toJSONSpans(it)
			}
		case CodeBlock:
			jb.Language = v.Language
			jb.Lines = v.Lines
			jb.Unterminated = v.Unterminated
		case Blockquote:
			jb.Spans = toJSONSpans(v.Spans)
		}
		out = append(out, jb)
	}
	return json.Marshal(out)
}

func toJSONSpans(spans []Span) []jsonSpan {
	out := make([]jsonSpan, len(spans))
	for i, s := range spans {
		out[i] = jsonSpan{Type: s.Kind.String(), Text: s.Text, Href: s.Href}
	}
	return out
}
