// Package components renders the structured "rich components" that can
// accompany an assistant reply (alert cards, agent dashboards, tables,
// charts, metrics, timelines) as terminal text.
package components

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Component types sent by the backend.
const (
	TypeText           = "text"
	TypeAlertCards     = "alert-cards"
	TypeAgentDashboard = "agent-dashboard"
	TypeChart          = "chart"
	TypeTable          = "table"
	TypeTimeline       = "timeline"
	TypeMetrics        = "metrics"
)

const defaultWidth = 80

// Component is one typed UI element attached to a reply.
type Component struct {
	Type   string         `json:"type"`
	Data   map[string]any `json:"data"`
	Config map[string]any `json:"config,omitempty"`
}

// Render draws c for a terminal of the given width. Unknown types render
// as the empty string.
func Render(c Component, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	switch c.Type {
	case TypeText:
		return renderText(c, width)
	case TypeAlertCards:
		return renderAlertCards(c, width)
	case TypeAgentDashboard:
		return renderAgentDashboard(c, width)
	case TypeTable:
		return renderTable(c, width)
	case TypeChart:
		return renderChart(c, width)
	case TypeMetrics:
		return renderMetrics(c, width)
	case TypeTimeline:
		return renderTimeline(c, width)
	default:
		return ""
	}
}

// RenderAll renders every component that adds something to message and
// joins them with blank lines.
func RenderAll(list []Component, message string, width int) string {
	var parts []string
	for _, c := range ForDisplay(list, message) {
		if s := Render(c, width); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ForDisplay drops text components that only repeat the message body.
func ForDisplay(list []Component, message string) []Component {
	body := strings.TrimSpace(message)
	out := make([]Component, 0, len(list))
	for _, c := range list {
		if c.Type == TypeText && strings.TrimSpace(str(c.Data, "text")) == body {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Helpers for the loosely typed JSON payloads.

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s := formatValue(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func list(m map[string]any, key string) []map[string]any {
	raw, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func stringMap(m map[string]any, key string) map[string]string {
	raw, _ := m[key].(map[string]any)
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[strings.ToLower(k)] = s
		}
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		// Wazuh nests names, e.g. {"agent": {"name": "web-01", "id": "001"}}.
		if s := str(x, "name", "id"); s != "" {
			return s
		}
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
