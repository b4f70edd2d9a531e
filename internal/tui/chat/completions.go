package chat

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

const maxCompletionItems = 6

// completionItem is one popup row.
type completionItem struct {
	Label       string
	Description string
	Insert      string // input after tab
	Submit      string // input sent on enter
}

func commandItems(commands []Command) []completionItem {
	items := make([]completionItem, len(commands))
	for i, c := range commands {
		items[i] = completionItem{
			Label:       c.Usage,
			Description: c.Description,
			Insert:      "/" + c.Name + " ",
			Submit:      "/" + c.Name,
		}
	}
	return items
}

type sessionSource []session.Session

func (s sessionSource) String(i int) string { return s[i].Title }
func (s sessionSource) Len() int            { return len(s) }

// sessionItems offers saved conversations as /switch targets. A numeric
// query matches number prefixes; anything else is fuzzy matched on titles.
func sessionItems(list []session.Session, query string) []completionItem {
	query = strings.TrimPrefix(strings.TrimSpace(query), "#")

	var picked []session.Session
	switch {
	case query == "":
		picked = list
	case isDigits(query):
		// An exact number leads so enter switches to what was typed.
		for _, s := range list {
			n := strconv.FormatInt(s.Number, 10)
			switch {
			case n == query:
				picked = append([]session.Session{s}, picked...)
			case strings.HasPrefix(n, query):
				picked = append(picked, s)
			}
		}
	default:
		for _, match := range fuzzy.FindFrom(query, sessionSource(list)) {
			picked = append(picked, list[match.Index])
		}
	}

	items := make([]completionItem, 0, len(picked))
	for _, s := range picked {
		n := strconv.FormatInt(s.Number, 10)
		items = append(items, completionItem{
			Label:       "#" + n,
			Description: s.DisplayTitle(),
			Insert:      "/switch " + n,
			Submit:      "/switch " + n,
		})
	}
	return items
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// CompletionsModel is the popup above the input. It lists slash commands
// while a command name is typed and saved conversations after "/switch ".
type CompletionsModel struct {
	items   []completionItem
	cursor  int
	visible bool
	styles  *ui.Styles
}

func NewCompletionsModel(styles *ui.Styles) *CompletionsModel {
	return &CompletionsModel{styles: styles}
}

// SetItems shows the popup with items, keeping the cursor in range. The
// popup hides when nothing matches.
func (c *CompletionsModel) SetItems(items []completionItem) {
	c.items = items
	c.visible = len(items) > 0
	if c.cursor >= len(items) {
		c.cursor = max(0, len(items)-1)
	}
}

func (c *CompletionsModel) Hide() {
	c.visible = false
	c.cursor = 0
	c.items = nil
}

func (c *CompletionsModel) IsVisible() bool {
	return c.visible
}

// Selected returns the highlighted row, or nil when nothing matches.
func (c *CompletionsModel) Selected() *completionItem {
	if !c.visible || len(c.items) == 0 {
		return nil
	}
	return &c.items[c.cursor]
}

// Update moves the selection.
func (c *CompletionsModel) Update(msg tea.Msg) (*CompletionsModel, tea.Cmd) {
	if !c.visible {
		return c, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "ctrl+p"))):
			if c.cursor > 0 {
				c.cursor--
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down"))):
			if c.cursor < len(c.items)-1 {
				c.cursor++
			}
		}
	}
	return c, nil
}

func (c *CompletionsModel) View() string {
	if !c.visible || len(c.items) == 0 {
		return ""
	}

	theme := c.styles.Theme()
	// Scroll so the cursor stays in the window.
	start := max(0, c.cursor-maxCompletionItems+1)
	end := min(len(c.items), start+maxCompletionItems)
	items := c.items[start:end]

	labelWidth := 0
	for _, item := range items {
		labelWidth = max(labelWidth, lipgloss.Width(item.Label))
	}

	labelStyle := lipgloss.NewStyle().Foreground(theme.Secondary)
	selectedStyle := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(theme.Muted)

	var b strings.Builder
	for i, item := range items {
		padding := strings.Repeat(" ", labelWidth-lipgloss.Width(item.Label)+2)
		if start+i == c.cursor {
			b.WriteString(selectedStyle.Render("❯ " + item.Label))
		} else {
			b.WriteString("  " + labelStyle.Render(item.Label))
		}
		b.WriteString(padding)
		b.WriteString(descStyle.Render(item.Description))
		if i < len(items)-1 {
			b.WriteString("\n")
		}
	}
	if extra := len(c.items) - end; extra > 0 {
		b.WriteString("\n")
		b.WriteString(descStyle.Render("  ... " + strconv.Itoa(extra) + " more"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1).
		Render(b.String())
}
