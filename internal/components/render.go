package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
)

var (
	defaultSeverityColors = map[string]string{
		"critical": "#ef4444",
		"high":     "#f97316",
		"medium":   "#eab308",
		"low":      "#3b82f6",
	}
	defaultStatusColors = map[string]string{
		"active":          "#10b981",
		"disconnected":    "#ef4444",
		"pending":         "#eab308",
		"never_connected": "#928374",
	}
	defaultChartColors = []string{"#06b6d4", "#3b82f6", "#8b5cf6", "#ec4899"}

	mutedColor  = lipgloss.Color("#928374")
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func renderText(c Component, width int) string {
	text := strings.TrimSpace(str(c.Data, "text"))
	if text == "" {
		return ""
	}
	out := wordwrap.String(text, width)
	if str(c.Config, "style") == "warning" {
		out = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultSeverityColors["medium"])).Render("⚠ ") + out
	}
	return out
}

// severityOf prefers an explicit severity and falls back to the Wazuh
// rule level (0-15).
func severityOf(alert map[string]any) string {
	if s := strings.ToLower(str(alert, "severity")); s != "" {
		return s
	}
	level, ok := number(alert["level"])
	if !ok {
		if rule, isMap := alert["rule"].(map[string]any); isMap {
			level, ok = number(rule["level"])
		}
	}
	switch {
	case !ok:
		return ""
	case level >= 12:
		return "critical"
	case level >= 8:
		return "high"
	case level >= 4:
		return "medium"
	default:
		return "low"
	}
}

func colorFor(name string, overrides, defaults map[string]string) lipgloss.Color {
	if c, ok := overrides[name]; ok && c != "" {
		return lipgloss.Color(c)
	}
	if c, ok := defaults[name]; ok {
		return lipgloss.Color(c)
	}
	return mutedColor
}

func renderAlertCards(c Component, width int) string {
	alerts := list(c.Data, "alerts")
	if len(alerts) == 0 {
		return mutedStyle.Render("No alerts.")
	}
	colors := stringMap(c.Config, "severityColors")

	cards := make([]string, 0, len(alerts))
	for _, a := range alerts {
		sev := severityOf(a)
		color := colorFor(sev, colors, defaultSeverityColors)

		var head []string
		if sev != "" {
			head = append(head, lipgloss.NewStyle().Bold(true).Foreground(color).Render(strings.ToUpper(sev)))
		}
		if title := str(a, "description", "rule_description", "title", "name"); title != "" {
			head = append(head, lipgloss.NewStyle().Bold(true).Render(title))
		}

		var meta []string
		if id := str(a, "rule_id", "id"); id != "" {
			meta = append(meta, "Rule "+id)
		} else if rule, ok := a["rule"].(map[string]any); ok {
			if id := str(rule, "id"); id != "" {
				meta = append(meta, "Rule "+id)
			}
		}
		if agent := str(a, "agent", "agent_name"); agent != "" {
			meta = append(meta, "Agent "+agent)
		}
		if ts := str(a, "timestamp", "time"); ts != "" {
			meta = append(meta, ts)
		}

		body := strings.Join(head, "  ")
		if len(meta) > 0 {
			body += "\n" + mutedStyle.Render(strings.Join(meta, " · "))
		}
		card := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Padding(0, 1).
			Width(max(width-2, 10)).
			Render(body)
		cards = append(cards, card)
	}
	return strings.Join(cards, "\n")
}

func renderAgentDashboard(c Component, width int) string {
	agents := list(c.Data, "agents")
	if len(agents) == 0 {
		return mutedStyle.Render("No agents.")
	}
	colors := stringMap(c.Config, "statusColors")

	headers := []string{"", "Agent", "ID", "IP", "OS", "Status"}
	maxCell := cellWidth(width, len(headers))
	rows := make([][]string, 0, len(agents))
	for _, a := range agents {
		status := strings.ToLower(str(a, "status"))
		dot := lipgloss.NewStyle().Foreground(colorFor(status, colors, defaultStatusColors)).Render("●")
		osName := str(a, "os", "os_name", "platform")
		if osMap, ok := a["os"].(map[string]any); ok {
			osName = strings.TrimSpace(str(osMap, "name", "platform") + " " + str(osMap, "version"))
		}
		rows = append(rows, []string{
			dot,
			truncate(str(a, "name"), maxCell),
			truncate(str(a, "id"), maxCell),
			truncate(str(a, "ip", "registerIP"), maxCell),
			truncate(osName, maxCell),
			truncate(status, maxCell),
		})
	}
	return newTable(headers, rows).String()
}

func renderTable(c Component, width int) string {
	rawRows, _ := c.Data["rows"].([]any)
	var columns []string
	if cols, ok := c.Data["columns"].([]any); ok {
		for _, col := range cols {
			columns = append(columns, formatValue(col))
		}
	}
	if len(columns) == 0 {
		for _, r := range rawRows {
			if obj, ok := r.(map[string]any); ok {
				columns = sortedKeys(obj)
				break
			}
		}
	}
	if len(columns) == 0 {
		return ""
	}

	maxCell := cellWidth(width, len(columns))
	rows := make([][]string, 0, len(rawRows))
	for _, r := range rawRows {
		var cells []string
		switch row := r.(type) {
		case map[string]any:
			cells = rowCells(row, columns)
		case []any:
			for _, v := range row {
				cells = append(cells, formatValue(v))
			}
		default:
			cells = []string{formatValue(row)}
		}
		for len(cells) < len(columns) {
			cells = append(cells, "")
		}
		cells = cells[:len(columns)]
		for i := range cells {
			cells[i] = truncate(cells[i], maxCell)
		}
		rows = append(rows, cells)
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = truncate(col, maxCell)
	}
	return newTable(headers, rows).String()
}

// rowCells maps a row object onto the column order. Columns are matched
// by exact key, then case-insensitively, then as snake_case ("Affected
// Agents" → "affected_agents"). If no column matches at all the row's own
// keys are used in sorted order.
func rowCells(row map[string]any, columns []string) []string {
	lower := make(map[string]any, len(row))
	for k, v := range row {
		lower[strings.ToLower(k)] = v
	}
	cells := make([]string, len(columns))
	matched := false
	for i, col := range columns {
		v, ok := row[col]
		if !ok {
			v, ok = lower[strings.ToLower(col)]
		}
		if !ok {
			v, ok = lower[strings.ReplaceAll(strings.ToLower(col), " ", "_")]
		}
		if ok {
			matched = true
			cells[i] = formatValue(v)
		}
	}
	if matched {
		return cells
	}
	cells = cells[:0]
	for _, k := range sortedKeys(row) {
		cells = append(cells, formatValue(row[k]))
	}
	return cells
}

func renderChart(c Component, width int) string {
	points := list(c.Data, "data")
	if len(points) == 0 {
		return ""
	}

	colors := defaultChartColors
	if raw, ok := c.Config["colors"].([]any); ok {
		var custom []string
		for _, v := range raw {
			if s, ok := v.(string); ok {
				custom = append(custom, s)
			}
		}
		if len(custom) > 0 {
			colors = custom
		}
	}

	type bar struct {
		label string
		value float64
		text  string
	}
	bars := make([]bar, 0, len(points))
	labelW, valueW, maxVal := 0, 0, 0.0
	for _, p := range points {
		v, _ := number(p["value"])
		b := bar{label: str(p, "label", "name"), value: v, text: formatValue(p["value"])}
		labelW = max(labelW, runewidth.StringWidth(b.label))
		valueW = max(valueW, runewidth.StringWidth(b.text))
		maxVal = max(maxVal, v)
		bars = append(bars, b)
	}
	labelW = min(labelW, width/3)
	barW := max(width-labelW-valueW-2, 1)

	var sb strings.Builder
	if title := str(c.Data, "title"); title != "" {
		sb.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
		sb.WriteString("\n")
	}
	for i, b := range bars {
		n := 0
		if maxVal > 0 && b.value > 0 {
			n = max(int(b.value/maxVal*float64(barW)), 1)
		}
		color := lipgloss.Color(colors[i%len(colors)])
		fmt.Fprintf(&sb, "%s %s %s",
			runewidth.FillRight(runewidth.Truncate(b.label, labelW, "…"), labelW),
			lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", n)),
			b.text,
		)
		if i < len(bars)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func renderMetrics(c Component, width int) string {
	metrics, ok := c.Data["metrics"].(map[string]any)
	if !ok {
		metrics = c.Data
	}
	if len(metrics) == 0 {
		return ""
	}

	tile := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(mutedColor).Padding(0, 1)
	var lines, row []string
	rowW := 0
	for _, k := range sortedKeys(metrics) {
		label := strings.ReplaceAll(k, "_", " ")
		t := tile.Render(mutedStyle.Render(label) + "\n" + lipgloss.NewStyle().Bold(true).Render(formatValue(metrics[k])))
		w := lipgloss.Width(t)
		if len(row) > 0 && rowW+w > width {
			lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowW = nil, 0
		}
		row = append(row, t)
		rowW += w
	}
	if len(row) > 0 {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return strings.Join(lines, "\n")
}

func renderTimeline(c Component, width int) string {
	events := list(c.Data, "events")
	if len(events) == 0 {
		events = list(c.Data, "items")
	}
	if len(events) == 0 {
		return ""
	}
	sort.SliceStable(events, func(i, j int) bool {
		return str(events[i], "timestamp", "time") < str(events[j], "timestamp", "time")
	})

	tsW := 0
	for _, e := range events {
		tsW = max(tsW, runewidth.StringWidth(str(e, "timestamp", "time")))
	}
	textW := max(width-tsW-3, 10)

	var sb strings.Builder
	for _, e := range events {
		ts := runewidth.FillRight(str(e, "timestamp", "time"), tsW)
		text := wordwrap.String(str(e, "description", "title", "event", "text"), textW)
		for j, line := range strings.Split(text, "\n") {
			if j > 0 {
				ts = strings.Repeat(" ", tsW)
			}
			fmt.Fprintf(&sb, "%s %s %s", mutedStyle.Render(ts), mutedStyle.Render("│"), line)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// cellWidth is the widest a cell may be so that n columns fit in width.
func cellWidth(width, n int) int {
	if n == 0 {
		return width
	}
	return max((width-(n+1))/n-2, 4)
}

func truncate(s string, w int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= w {
		return s
	}
	return runewidth.Truncate(s, w, "…")
}
