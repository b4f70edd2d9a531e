package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleReply = `## Alert summary

There were **3** failed SSH logins on ` + "`web-01`" + ` in the last hour.

- 10.0.0.7 tried root
- 10.0.0.9 tried admin
`

func TestRenderPlain(t *testing.T) {
	path := testConfig(t)
	out, err := execute(t, sampleReply, "--config", path, "render", "--format", "plain", "--width", "60")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("plain output contains escape sequences: %q", out)
	}
	if strings.Contains(out, "**") {
		t.Errorf("plain output kept markdown emphasis: %q", out)
	}
	for _, want := range []string{"Alert summary", "failed SSH logins", "10.0.0.7 tried root"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	path := testConfig(t)
	out, err := execute(t, sampleReply, "--config", path, "render", "--format", "json", "--no-dedupe")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var got struct {
		Cleaned string            `json:"cleaned"`
		Dropped map[string]int    `json:"dropped"`
		Blocks  []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !strings.Contains(got.Cleaned, "failed SSH logins") {
		t.Errorf("cleaned = %q", got.Cleaned)
	}
	if got.Dropped == nil || len(got.Dropped) != 0 {
		t.Errorf("dropped = %v, want empty object", got.Dropped)
	}
	if len(got.Blocks) == 0 {
		t.Error("expected parsed blocks")
	}
	if !strings.Contains(out, `"type": "header"`) {
		t.Errorf("expected a header block:\n%s", out)
	}
}

func TestRenderTelegram(t *testing.T) {
	path := testConfig(t)
	out, err := execute(t, sampleReply, "--config", path, "render", "-f", "telegram")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<b>") {
		t.Errorf("telegram output should use HTML bold:\n%s", out)
	}
	if strings.Contains(out, "--- message") {
		t.Errorf("short reply should fit one message:\n%s", out)
	}
}

func TestRenderInvalidFormat(t *testing.T) {
	path := testConfig(t)
	_, err := execute(t, sampleReply, "--config", path, "render", "--format", "pdf")
	if err == nil || !strings.Contains(err.Error(), `invalid format "pdf"`) {
		t.Fatalf("err = %v, want invalid format", err)
	}
}

func TestReadInput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "reply.md")
	if err := os.WriteFile(file, []byte("from file"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "no args reads stdin", want: "from stdin"},
		{name: "dash reads stdin", args: []string{"-"}, want: "from stdin"},
		{name: "file", args: []string{file}, want: "from file"},
		{name: "missing file", args: []string{file + ".missing"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInput(strings.NewReader("from stdin"), tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("readInput = %q, want %q", got, tt.want)
			}
		})
	}
}
