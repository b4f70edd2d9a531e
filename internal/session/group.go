package session

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
)

// DateGroups buckets sessions for display by last activity.
type DateGroups struct {
	Today     []Session
	Yesterday []Session
	Older     []Session
}

// Len returns the number of grouped sessions.
func (g DateGroups) Len() int {
	return len(g.Today) + len(g.Yesterday) + len(g.Older)
}

// Date group labels, newest first.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupOlder     = "Older"
)

// DateLabel names the group t falls into relative to now's calendar day.
// Times after today count as today.
func DateLabel(t, now time.Time) string {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	t = t.In(loc)
	switch {
	case !t.Before(today):
		return GroupToday
	case !t.Before(today.AddDate(0, 0, -1)):
		return GroupYesterday
	default:
		return GroupOlder
	}
}

// GroupByDate splits list by calendar day of UpdatedAt in now's location.
// Input order is kept within each group.
func GroupByDate(list []Session, now time.Time) DateGroups {
	var g DateGroups
	for _, s := range list {
		switch DateLabel(s.UpdatedAt, now) {
		case GroupToday:
			g.Today = append(g.Today, s)
		case GroupYesterday:
			g.Yesterday = append(g.Yesterday, s)
		default:
			g.Older = append(g.Older, s)
		}
	}
	return g
}

type titleSource []Session

func (t titleSource) String(i int) string { return t[i].DisplayTitle() }
func (t titleSource) Len() int            { return len(t) }

// FilterByTitle keeps sessions whose title contains query, ignoring case.
// When nothing contains it, sessions are ranked by fuzzy match instead so
// that typos and abbreviations still find something.
func FilterByTitle(list []Session, query string) []Session {
	query = strings.TrimSpace(query)
	if query == "" {
		return list
	}

	lower := strings.ToLower(query)
	var out []Session
	for _, s := range list {
		if strings.Contains(strings.ToLower(s.DisplayTitle()), lower) {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, match := range fuzzy.FindFrom(query, titleSource(list)) {
		out = append(out, list[match.Index])
	}
	return out
}
