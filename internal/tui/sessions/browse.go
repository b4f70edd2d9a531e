// Package sessions is the full-screen conversation picker.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

const listLimit = 200

// SortOrder defines how sessions are sorted
type SortOrder int

const (
	SortNewest SortOrder = iota
	SortOldest
	SortLongest
	numSortOrders
)

func (s SortOrder) String() string {
	switch s {
	case SortOldest:
		return "oldest"
	case SortLongest:
		return "messages"
	default:
		return "newest"
	}
}

// StatusFilter defines which session statuses to show
type StatusFilter int

const (
	StatusAll StatusFilter = iota
	StatusActive
	StatusComplete
	StatusError
	numStatusFilters
)

func (s StatusFilter) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return "all"
	}
}

func (s StatusFilter) status() session.SessionStatus {
	switch s {
	case StatusActive:
		return session.StatusActive
	case StatusComplete:
		return session.StatusComplete
	case StatusError:
		return session.StatusError
	}
	return ""
}

// Messages for tea.Program
type (
	refreshMsg       struct{}
	deleteConfirmMsg struct{ sessionID string }
)

// Model is the sessions browser model
type Model struct {
	// Dimensions
	width  int
	height int

	// Data
	store    session.Store
	sessions []session.Session
	now      func() time.Time

	// Selection
	cursor int

	// Search/filter state
	searchInput textinput.Model
	searching   bool
	fullText    bool // search message contents instead of titles
	searchQuery string

	// Sort/filter
	sortOrder    SortOrder
	statusFilter StatusFilter

	// Delete confirmation
	deleteConfirm bool
	deleteID      string
	deleteNumber  int64

	// Set when the user picks a session to continue
	chosen string

	styles *ui.Styles
	keyMap KeyMap

	err error
}

// New creates a new sessions browser model
func New(store session.Store, width, height int, styles *ui.Styles) *Model {
	if styles == nil {
		styles = ui.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "Search..."
	ti.CharLimit = 100
	ti.Width = 30

	return &Model{
		width:       width,
		height:      height,
		store:       store,
		now:         time.Now,
		searchInput: ti,
		styles:      styles,
		keyMap:      DefaultKeyMap(),
	}
}

// Chosen returns the ID of the session picked with enter, or "" when the
// browser was closed without a choice.
func (m *Model) Chosen() string {
	return m.chosen
}

// Init loads the first page of sessions
func (m *Model) Init() tea.Cmd {
	return func() tea.Msg { return refreshMsg{} }
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, nil

	case deleteConfirmMsg:
		if err := m.store.Delete(context.Background(), msg.sessionID); err != nil {
			m.err = err
			return m, nil
		}
		m.refresh()
		return m, nil
	}

	return m, nil
}

// handleKeyMsg handles keyboard input
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case "enter":
			m.searching = false
			m.searchInput.Blur()
			m.searchQuery = strings.TrimSpace(m.searchInput.Value())
			m.refresh()
			return m, nil
		case "esc":
			m.searching = false
			m.searchInput.Blur()
			m.searchInput.SetValue(m.searchQuery)
			return m, nil
		}

		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	if m.deleteConfirm {
		switch msg.String() {
		case "y", "Y":
			m.deleteConfirm = false
			id := m.deleteID
			return m, func() tea.Msg { return deleteConfirmMsg{sessionID: id} }
		case "n", "N", "esc":
			m.deleteConfirm = false
			m.deleteID = ""
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Up):
		m.moveCursor(-1)

	case key.Matches(msg, m.keyMap.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keyMap.PageUp):
		m.moveCursor(-m.viewportHeight())

	case key.Matches(msg, m.keyMap.PageDown):
		m.moveCursor(m.viewportHeight())

	case key.Matches(msg, m.keyMap.GoToTop):
		m.cursor = 0

	case key.Matches(msg, m.keyMap.GoToBottom):
		if len(m.sessions) > 0 {
			m.cursor = len(m.sessions) - 1
		}

	case key.Matches(msg, m.keyMap.Select):
		if sel := m.selected(); sel != nil {
			m.chosen = sel.ID
			return m, tea.Quit
		}

	case key.Matches(msg, m.keyMap.Delete):
		if sel := m.selected(); sel != nil {
			m.deleteConfirm = true
			m.deleteID = sel.ID
			m.deleteNumber = sel.Number
		}

	case key.Matches(msg, m.keyMap.Search):
		m.searching = true
		m.searchInput.Focus()

	case key.Matches(msg, m.keyMap.Sort):
		m.sortOrder = (m.sortOrder + 1) % numSortOrders
		m.sortSessions()

	case key.Matches(msg, m.keyMap.Filter):
		m.statusFilter = (m.statusFilter + 1) % numStatusFilters
		m.refresh()

	case key.Matches(msg, m.keyMap.ToggleFullText):
		m.fullText = !m.fullText
		if m.searchQuery != "" {
			m.refresh()
		}
	}

	return m, nil
}

func (m *Model) selected() *session.Session {
	if m.cursor < 0 || m.cursor >= len(m.sessions) {
		return nil
	}
	return &m.sessions[m.cursor]
}

// moveCursor moves the cursor by delta, clamping to bounds
func (m *Model) moveCursor(delta int) {
	m.cursor = max(0, min(m.cursor+delta, len(m.sessions)-1))
}

// viewportHeight returns the number of visible session rows
func (m *Model) viewportHeight() int {
	// Header, filter bar, rule and help line
	return max(1, m.height-4)
}

// refresh reloads sessions from the store with the current filters.
func (m *Model) refresh() {
	ctx := context.Background()
	m.err = nil

	var list []session.Session
	if m.fullText && m.searchQuery != "" {
		results, err := m.store.Search(ctx, m.searchQuery, listLimit)
		if err != nil {
			m.err = err
			return
		}
		seen := make(map[string]bool)
		for _, r := range results {
			if seen[r.SessionID] {
				continue
			}
			seen[r.SessionID] = true
			sess, err := m.store.Get(ctx, r.SessionID)
			if err != nil {
				continue
			}
			list = append(list, *sess)
		}
	} else {
		all, err := m.store.List(ctx, session.ListOptions{Limit: listLimit})
		if err != nil {
			m.err = err
			return
		}
		list = session.FilterByTitle(all, m.searchQuery)
	}

	if want := m.statusFilter.status(); want != "" {
		filtered := list[:0]
		for _, s := range list {
			if s.Status == want {
				filtered = append(filtered, s)
			}
		}
		list = filtered
	}

	m.sessions = list
	m.sortSessions()
	m.moveCursor(0)
}

// sortSessions sorts the sessions list based on current sort order
func (m *Model) sortSessions() {
	switch m.sortOrder {
	case SortNewest:
		sort.SliceStable(m.sessions, func(i, j int) bool {
			return m.sessions[i].UpdatedAt.After(m.sessions[j].UpdatedAt)
		})
	case SortOldest:
		sort.SliceStable(m.sessions, func(i, j int) bool {
			return m.sessions[i].UpdatedAt.Before(m.sessions[j].UpdatedAt)
		})
	case SortLongest:
		sort.SliceStable(m.sessions, func(i, j int) bool {
			return m.sessions[i].MessageCount > m.sessions[j].MessageCount
		})
	}
}

// View renders the model
func (m *Model) View() string {
	theme := m.styles.Theme()
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Text).
		Background(theme.Border).
		Padding(0, 1).
		Width(m.width)

	countStr := fmt.Sprintf("[%d conversations]", len(m.sessions))
	title := "Conversations"
	padding := max(1, m.width-len(title)-len(countStr)-2)
	b.WriteString(headerStyle.Render(title + strings.Repeat(" ", padding) + countStr))
	b.WriteString("\n")

	filterStyle := lipgloss.NewStyle().Foreground(theme.Muted)
	var filterParts []string
	switch {
	case m.searching:
		filterParts = append(filterParts, "[Search: "+m.searchInput.View()+"]")
	case m.searchQuery != "":
		filterParts = append(filterParts, "[Search: "+m.searchQuery+"]")
	default:
		filterParts = append(filterParts, "[Search: _]")
	}
	filterParts = append(filterParts, fmt.Sprintf("[Sort: %s]", m.sortOrder))
	filterParts = append(filterParts, fmt.Sprintf("[Status: %s]", m.statusFilter))
	if m.fullText {
		filterParts = append(filterParts, "[Full text]")
	}
	b.WriteString(filterStyle.Render(strings.Join(filterParts, " ")))
	b.WriteString("\n")

	selectedStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Text).
		Background(theme.Primary)
	normalStyle := lipgloss.NewStyle().Foreground(theme.Text)
	mutedStyle := lipgloss.NewStyle().Foreground(theme.Muted)
	groupStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary)

	rows, cursorRow := m.rows(normalStyle, selectedStyle, groupStyle)
	if len(rows) == 0 {
		rows = []string{mutedStyle.Render("  No conversations")}
	}

	vpHeight := m.viewportHeight()
	first := max(0, cursorRow-vpHeight+1)
	last := min(first+vpHeight, len(rows))
	for _, row := range rows[first:last] {
		b.WriteString(row)
		b.WriteString("\n")
	}
	for i := last - first; i < vpHeight; i++ {
		b.WriteString("\n")
	}

	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(m.width, 0))))
	b.WriteString("\n")

	switch {
	case m.deleteConfirm:
		confirmStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.Error)
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Delete conversation #%d? (y/n)", m.deleteNumber)))
	case m.err != nil:
		errorStyle := lipgloss.NewStyle().Foreground(theme.Error)
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	default:
		b.WriteString(mutedStyle.Render(m.keyMap.HelpLine()))
	}

	return b.String()
}

// rows renders one line per session. Sorted newest first, the list is
// split under Today, Yesterday and Older headings. cursorRow is the line
// index of the selected session.
func (m *Model) rows(normal, selected, group lipgloss.Style) (rows []string, cursorRow int) {
	now := m.now()
	label := ""
	for i, s := range m.sessions {
		if m.sortOrder == SortNewest {
			if l := session.DateLabel(s.UpdatedAt, now); l != label {
				label = l
				rows = append(rows, group.Render(" "+l))
			}
		}

		cursor := "  "
		if i == m.cursor {
			cursor = "> "
			cursorRow = len(rows)
		}
		status := string(s.Status)
		if status == "" {
			status = string(session.StatusActive)
		}
		row := fmt.Sprintf("%s%4d %-32s %4d msgs  %-8s %s",
			cursor, s.Number, ui.Truncate(s.DisplayTitle(), 32), s.MessageCount, status, formatRelativeTime(now, s.UpdatedAt))
		row = ui.Truncate(row, m.width)
		if pad := m.width - lipgloss.Width(row); pad > 0 {
			row += strings.Repeat(" ", pad)
		}
		if i == m.cursor {
			rows = append(rows, selected.Render(row))
		} else {
			rows = append(rows, normal.Render(row))
		}
	}
	return rows, cursorRow
}

// formatRelativeTime returns a compact age such as "5m" or "3d".
func formatRelativeTime(now, t time.Time) string {
	dur := now.Sub(t)
	switch {
	case dur < time.Minute:
		return "now"
	case dur < time.Hour:
		return fmt.Sprintf("%dm", int(dur.Minutes()))
	case dur < 24*time.Hour:
		return fmt.Sprintf("%dh", int(dur.Hours()))
	case dur < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(dur.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
