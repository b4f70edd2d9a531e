package dedupe

import (
	"regexp"
	"slices"
	"strings"
)

// Action is what a matching rule does with a line.
type Action int

const (
	// Keep emits the line and stops rule evaluation.
	Keep Action = iota
	// Drop suppresses the line. Dropped lines never enter the seen set.
	Drop
)

func (a Action) String() string {
	if a == Drop {
		return "drop"
	}
	return "keep"
}

// Built-in rule names, usable with Policy.Without.
const (
	RuleExactRepeat   = "exact-repeat"
	RuleInlineSummary = "inline-summary"
	RuleLeadIn        = "lead-in-summary"
)

// Rule is one predicate/action pair of the policy table.
type Rule struct {
	Name   string
	Match  func(Line) bool
	Action Action
}

// Policy is the tunable heuristic table applied by a Deduplicator.
// Rules are evaluated in order; the first matching rule decides the line.
type Policy struct {
	// MinLength is the normalized length a line must exceed to be
	// remembered and considered for exact-repeat suppression.
	MinLength int
	// MinSummaryFields is how many "**Field**:" spans make a collapsed
	// one-line summary.
	MinSummaryFields int
	// LeadInPhrases open a restated summary sentence (matched case-insensitively).
	LeadInPhrases []string
	// MinLeadInBold is exceeded by the bold-span count of a dropped lead-in line.
	MinLeadInBold int

	Rules []Rule
}

var (
	boldFieldRe = regexp.MustCompile(`\*\*[^*]+\*\*:`)
	boldSpanRe  = regexp.MustCompile(`\*\*[^*]+\*\*`)
)

// DefaultLeadInPhrases are the sentence openers used by DefaultPolicy.
var DefaultLeadInPhrases = []string{"here is", "here's", "below is", "the following"}

// DefaultPolicy returns the policy tuned against observed assistant output.
func DefaultPolicy() Policy {
	p := Policy{
		MinLength:        50,
		MinSummaryFields: 2,
		LeadInPhrases:    slices.Clone(DefaultLeadInPhrases),
		MinLeadInBold:    2,
	}
	p.Rules = p.builtinRules()
	return p
}

// builtinRules binds the three standard rules to the policy's thresholds.
// The closures capture p by value so later edits to a copy don't leak in.
func (p Policy) builtinRules() []Rule {
	return []Rule{
		{
			Name:   RuleExactRepeat,
			Action: Drop,
			Match: func(l Line) bool {
				return l.Remembered() && l.Seen()
			},
		},
		{
			Name:   RuleInlineSummary,
			Action: Drop,
			Match: func(l Line) bool {
				if !strings.Contains(l.Trimmed, " - **") {
					return false
				}
				return len(boldFieldRe.FindAllStringIndex(l.Trimmed, -1)) >= p.MinSummaryFields
			},
		},
		{
			Name:   RuleLeadIn,
			Action: Drop,
			Match: func(l Line) bool {
				lower := strings.ToLower(l.Trimmed)
				for _, phrase := range p.LeadInPhrases {
					if strings.HasPrefix(lower, strings.ToLower(phrase)) {
						return len(boldSpanRe.FindAllStringIndex(l.Trimmed, -1)) > p.MinLeadInBold
					}
				}
				return false
			},
		},
	}
}

// WithThresholds returns a copy of p with the built-in rules rebound to new
// thresholds. Zero values keep the current setting. Custom rules are kept
// in place; disabled built-ins stay disabled.
func (p Policy) WithThresholds(minLength, minSummaryFields, minLeadInBold int, phrases []string) Policy {
	if minLength > 0 {
		p.MinLength = minLength
	}
	if minSummaryFields > 0 {
		p.MinSummaryFields = minSummaryFields
	}
	if minLeadInBold > 0 {
		p.MinLeadInBold = minLeadInBold
	}
	if len(phrases) > 0 {
		p.LeadInPhrases = slices.Clone(phrases)
	}

	fresh := make(map[string]Rule)
	for _, r := range p.builtinRules() {
		fresh[r.Name] = r
	}
	rules := make([]Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if nr, ok := fresh[r.Name]; ok {
			nr.Action = r.Action
			r = nr
		}
		rules = append(rules, r)
	}
	p.Rules = rules
	return p
}

// Without returns a copy of p with the named rules removed.
func (p Policy) Without(names ...string) Policy {
	p.Rules = slices.DeleteFunc(slices.Clone(p.Rules), func(r Rule) bool {
		return slices.Contains(names, r.Name)
	})
	return p
}

// RuleNames lists the active rules in evaluation order.
func (p Policy) RuleNames() []string {
	names := make([]string, len(p.Rules))
	for i, r := range p.Rules {
		names[i] = r.Name
	}
	return names
}
