package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	render "github.com/samsaffron/wazuh-chat/internal/render/chat"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

// chromeHeight is the header, status line and footer around the viewport.
const chromeHeight = 3

// View renders the model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	if popup := m.completions.View(); popup != "" {
		b.WriteString(popup)
		b.WriteString("\n")
	}
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) viewportHeight() int {
	h := m.height - chromeHeight - m.textarea.Height()
	if popup := m.completions.View(); popup != "" {
		h -= lipgloss.Height(popup)
	}
	return max(h, 1)
}

// layout resizes the viewport after the input area changed size.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = m.viewportHeight()
}

// refresh re-renders the conversation into the viewport and scrolls to
// the end.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	var content string
	if len(m.messages) == 0 {
		content = render.RenderEmptyHistory(m.styles.Theme())
	} else {
		content = m.history.Render(m.messages)
	}
	if m.notice != "" {
		content += "\n\n" + m.styles.Muted.Render(m.notice)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m *Model) renderHeader() string {
	title := "New conversation"
	if m.sess != nil {
		title = m.sess.DisplayTitle()
		if m.sess.Number > 0 {
			title = fmt.Sprintf("#%d %s", m.sess.Number, title)
		}
	}
	const name = "wazuh-chat"
	title = ui.Truncate(title, max(m.width-lipgloss.Width(name+" · "), 10))
	return m.styles.Title.Render(name) + m.styles.Muted.Render(" · "+title)
}

func (m *Model) renderStatusLine() string {
	if !m.waiting {
		return ""
	}
	elapsed := time.Since(m.sentAt).Truncate(time.Second)
	return m.spinner.View() + m.styles.Muted.Render(fmt.Sprintf(" Waiting for the assistant... %s (esc to cancel)", elapsed))
}

func (m *Model) renderFooter() string {
	return m.styles.Footer.Render(m.keyMap.FooterHelp())
}
