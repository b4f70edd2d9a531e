// Package dedupe removes redundant restatements from assistant replies.
//
// The upstream generator sometimes emits a formatted answer followed by a
// collapsed one-line summary of the same facts, or repeats a long sentence
// verbatim. A Deduplicator makes one forward pass over the lines of a reply
// and drops those lines according to an ordered Policy. Short lines are never
// collapsed by the repeat rule so legitimate repeats ("OK", bullets) survive.
package dedupe

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Line is the view of one input line handed to rule predicates.
type Line struct {
	Raw        string
	Trimmed    string
	Normalized string

	seen      map[string]struct{}
	minLength int
}

// Seen reports whether the normalized form was already emitted in this pass.
func (l Line) Seen() bool {
	_, ok := l.seen[l.Normalized]
	return ok
}

// Remembered reports whether the line is long enough to enter the seen set.
func (l Line) Remembered() bool {
	return utf8.RuneCountInString(l.Normalized) > l.minLength
}

var (
	headingPrefixRe = regexp.MustCompile(`^#+\s*`)
	listPrefixRe    = regexp.MustCompile(`^(?:[-+]|\d+\.)\s+`)
	emphasisStrip   = strings.NewReplacer("**", "", "*", "", "`", "")
)

// Normalize reduces a line to its comparison key: emphasis markers,
// heading hashes and list markers removed, whitespace trimmed, lowercased.
func Normalize(line string) string {
	s := strings.TrimSpace(emphasisStrip.Replace(line))
	s = headingPrefixRe.ReplaceAllString(s, "")
	s = listPrefixRe.ReplaceAllString(s, "")
	return strings.ToLower(strings.TrimSpace(s))
}

// Stats counts dropped lines per rule name.
type Stats map[string]int

// Total is the number of dropped lines.
func (s Stats) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// Deduplicator applies a Policy.
// A Deduplicator holds no per-call state and is safe for concurrent use.
type Deduplicator struct {
	policy Policy
}

// New returns a Deduplicator for the given policy.
func New(p Policy) *Deduplicator {
	return &Deduplicator{policy: p}
}

// Default returns a Deduplicator using DefaultPolicy.
func Default() *Deduplicator {
	return New(DefaultPolicy())
}

// Policy returns the policy in use.
func (d *Deduplicator) Policy() Policy {
	return d.policy
}

// Deduplicate returns text with redundant lines removed.
func (d *Deduplicator) Deduplicate(text string) string {
	out, _ := d.DeduplicateWithStats(text)
	return out
}

// DeduplicateWithStats is Deduplicate that also reports which rules fired.
func (d *Deduplicator) DeduplicateWithStats(text string) (string, Stats) {
	stats := Stats{}
	if text == "" {
		return "", stats
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, strings.Count(text, "\n")+1)
	emitted := false

	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" && !emitted {
			continue
		}

		line := Line{
			Raw:        raw,
			Trimmed:    trimmed,
			Normalized: Normalize(raw),
			seen:       seen,
			minLength:  d.policy.MinLength,
		}

		if name, drop := d.evaluate(line); drop {
			stats[name]++
			continue
		}

		if line.Remembered() {
			seen[line.Normalized] = struct{}{}
		}
		out = append(out, raw)
		emitted = true
	}

	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n"), stats
}

// evaluate runs the rule table; the first matching rule decides.
func (d *Deduplicator) evaluate(l Line) (string, bool) {
	for _, r := range d.policy.Rules {
		if r.Match == nil || !r.Match(l) {
			continue
		}
		return r.Name, r.Action == Drop
	}
	return "", false
}
