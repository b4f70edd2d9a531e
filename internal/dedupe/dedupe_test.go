package dedupe

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  Hello World  ", "hello world"},
		{"**Agent**: host1", "agent: host1"},
		{"## Summary of `alerts`", "summary of alerts"},
		{"- item one", "item one"},
		{"* item one", "item one"},
		{"+ item one", "item one"},
		{"12. twelfth item", "twelfth item"},
		{"   - **Indented** bullet", "indented bullet"},
		{"-5 degrees", "-5 degrees"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeduplicate(t *testing.T) {
	long := "The agent web-01 reported repeated failed SSH logins from 10.0.0.5 overnight."

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only",
			in:   "  \n\n\t\n",
			want: "",
		},
		{
			name: "inline summary dropped",
			in:   "Critical: **Agent**: host1 - **Severity**: high - **Rule**: 100001\nDetails above.",
			want: "Details above.",
		},
		{
			name: "inline summary needs separator",
			in:   "**Agent**: host1 **Severity**: high",
			want: "**Agent**: host1 **Severity**: high",
		},
		{
			name: "inline summary needs two fields",
			in:   "Status - **Agent**: host1",
			want: "Status - **Agent**: host1",
		},
		{
			name: "colon inside bold is not a field",
			in:   "- **Agent:** host1 - **Severity:** high",
			want: "- **Agent:** host1 - **Severity:** high",
		},
		{
			name: "bulleted tips with bold labels kept",
			in:   "- **Note:** restart the agent - **Tip:** check ossec.log",
			want: "- **Note:** restart the agent - **Tip:** check ossec.log",
		},
		{
			name: "long repeat dropped",
			in:   long + "\n\n" + long,
			want: long,
		},
		{
			name: "long repeat matched after normalization",
			in:   long + "\n- **" + strings.ToUpper(long[:1]) + long[1:] + "**",
			want: long,
		},
		{
			name: "short repeat kept",
			in:   "OK\nOK\nOK",
			want: "OK\nOK\nOK",
		},
		{
			name: "lead-in with many bold values dropped",
			in:   "Here is the summary: **web-01** had **5** alerts at level **12**.\nEnd.",
			want: "End.",
		},
		{
			name: "lead-in is case-insensitive",
			in:   "THE FOLLOWING agents **a** **b** **c** are offline",
			want: "",
		},
		{
			name: "lead-in with two bold values kept",
			in:   "Here's what I found: **web-01** and **db-02**.",
			want: "Here's what I found: **web-01** and **db-02**.",
		},
		{
			name: "bold values without lead-in kept",
			in:   "Agents **a** **b** **c** are offline",
			want: "Agents **a** **b** **c** are offline",
		},
		{
			name: "leading and trailing blank lines stripped",
			in:   "\n\n  \nFirst\n\nSecond\n\n\n",
			want: "First\n\nSecond",
		},
		{
			name: "blank after dropped first line is leading",
			in:   "Here is **a** **b** **c**\n\nText",
			want: "Text",
		},
		{
			name: "crlf normalized",
			in:   "one\r\ntwo\r\n",
			want: "one\ntwo",
		},
	}

	d := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Deduplicate(tt.in); got != tt.want {
				t.Errorf("Deduplicate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeduplicateStats(t *testing.T) {
	long := strings.Repeat("repeated sentence ", 4)
	in := strings.Join([]string{
		long,
		"Critical: **Agent**: host1 - **Severity**: high",
		long,
		"Below is **x** **y** **z**",
		"kept",
	}, "\n")

	out, stats := Default().DeduplicateWithStats(in)
	if out != long+"\nkept" {
		t.Errorf("DeduplicateWithStats() output = %q", out)
	}
	want := Stats{RuleExactRepeat: 1, RuleInlineSummary: 1, RuleLeadIn: 1}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if stats.Total() != 3 {
		t.Errorf("Total() = %d, want 3", stats.Total())
	}
}

func TestDroppedLineNotRemembered(t *testing.T) {
	// The first occurrence is dropped by a shape rule, so the second
	// occurrence must not be treated as a repeat of it.
	line := "Here is the list: **alpha** **beta** **gamma** **delta** for you today"
	p := DefaultPolicy()
	d := New(p)
	in := line + "\n" + line
	if got := d.Deduplicate(in); got != "" {
		t.Fatalf("Deduplicate() = %q, want both dropped by lead-in rule", got)
	}

	d = New(p.Without(RuleLeadIn))
	if got := d.Deduplicate(in); got != line {
		t.Errorf("without lead-in: Deduplicate() = %q, want %q", got, line)
	}
}

func TestPolicyWithout(t *testing.T) {
	p := DefaultPolicy().Without(RuleInlineSummary)
	if diff := cmp.Diff([]string{RuleExactRepeat, RuleLeadIn}, p.RuleNames()); diff != "" {
		t.Errorf("RuleNames() mismatch (-want +got):\n%s", diff)
	}

	in := "Critical: **Agent**: host1 - **Severity**: high"
	if got := New(p).Deduplicate(in); got != in {
		t.Errorf("Deduplicate() = %q, want line kept", got)
	}

	// Without must not mutate the original policy's rules.
	if n := len(DefaultPolicy().Rules); n != 3 {
		t.Errorf("default policy has %d rules, want 3", n)
	}
}

func TestPolicyWithThresholds(t *testing.T) {
	line := "a line that is exactly forty characters!"
	in := line + "\n" + line

	if got := Default().Deduplicate(in); got != in {
		t.Fatalf("default policy collapsed a short line: %q", got)
	}

	p := DefaultPolicy().WithThresholds(20, 0, 0, nil)
	if p.MinSummaryFields != 2 || p.MinLeadInBold != 2 {
		t.Errorf("zero thresholds changed defaults: %+v", p)
	}
	if got := New(p).Deduplicate(in); got != line {
		t.Errorf("Deduplicate() with MinLength=20 = %q, want %q", got, line)
	}

	p = DefaultPolicy().WithThresholds(0, 0, 0, []string{"summary:"})
	if got := New(p).Deduplicate("Summary: **a** **b** **c**"); got != "" {
		t.Errorf("custom lead-in phrase not applied: %q", got)
	}
	if got := New(p).Deduplicate("Here is **a** **b** **c**"); got == "" {
		t.Errorf("replaced lead-in phrase still applied")
	}
}

func TestCustomKeepRule(t *testing.T) {
	p := DefaultPolicy()
	p.Rules = append([]Rule{{
		Name:   "keep-tables",
		Action: Keep,
		Match:  func(l Line) bool { return strings.HasPrefix(l.Trimmed, "|") },
	}}, p.Rules...)

	in := "| **Agent**: a - **Level**: 3 |"
	if got := New(p).Deduplicate(in); got != in {
		t.Errorf("Deduplicate() = %q, want keep rule to win", got)
	}
}

func TestShortLineExemption(t *testing.T) {
	short := "- Check the agent status on the manager" // under the threshold
	in := strings.Repeat(short+"\n", 3)
	got := Default().Deduplicate(in)
	if want := strings.TrimSuffix(in, "\n"); got != want {
		t.Errorf("Deduplicate() = %q, want %q", got, want)
	}
}

func FuzzDeduplicate(f *testing.F) {
	seeds := []string{
		"",
		"Critical: **Agent**: host1 - **Severity**: high - **Rule**: 100001\nDetails above.",
		"Here is **a** **b** **c**\n\n\nText",
		strings.Repeat("the same long sentence repeated over and over again here\n", 3),
		"\r\n\r\n- **x**: 1 - **y**: 2\r\n",
		"***\n```\n**\n",
		"a\r\r\nb",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	d := Default()
	f.Fuzz(func(t *testing.T, s string) {
		once := d.Deduplicate(s)
		if twice := d.Deduplicate(once); twice != once {
			t.Fatalf("not idempotent:\nonce:  %q\ntwice: %q", once, twice)
		}
		in := strings.Count(s, "\n") + 1
		if once != "" {
			if out := strings.Count(once, "\n") + 1; out > in {
				t.Fatalf("output has %d lines, input %d", out, in)
			}
		}
	})
}
