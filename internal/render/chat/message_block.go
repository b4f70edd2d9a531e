// Package chat turns stored conversation messages into terminal text for
// the interactive chat and the sessions show command.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"

	"github.com/samsaffron/wazuh-chat/internal/components"
	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/reply"
	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

const userPrompt = "❯ "

// MessageBlock is a rendered message. Blocks are immutable once built.
type MessageBlock struct {
	MessageID int64
	Rendered  string
	Height    int
	Width     int // terminal width at render time
}

// Options configures a MessageBlockRenderer.
type Options struct {
	Pipeline  *reply.Pipeline // nil uses reply.Default()
	Renderer  string          // config.RendererNative or config.RendererGlamour
	CodeStyle string
	Theme     *ui.Theme // nil uses the active theme
	Plain     bool      // no escape sequences at all
}

// MessageBlockRenderer renders session messages to MessageBlocks.
type MessageBlockRenderer struct {
	width    int
	pipeline *reply.Pipeline
	glamour  bool
	blocks   *ui.BlockRenderer
	theme    *ui.Theme
	plain    bool
}

// NewMessageBlockRenderer creates a renderer for the given terminal width.
func NewMessageBlockRenderer(width int, opts Options) *MessageBlockRenderer {
	theme := opts.Theme
	if theme == nil {
		theme = ui.GetTheme()
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = reply.Default()
	}
	return &MessageBlockRenderer{
		width:    width,
		pipeline: pipeline,
		glamour:  opts.Renderer == config.RendererGlamour && !opts.Plain,
		blocks: &ui.BlockRenderer{
			Width:     width,
			Theme:     theme,
			CodeStyle: opts.CodeStyle,
			Plain:     opts.Plain,
		},
		theme: theme,
		plain: opts.Plain,
	}
}

// Width returns the width blocks are rendered at.
func (r *MessageBlockRenderer) Width() int {
	return r.width
}

// Render converts a stored message into a MessageBlock.
func (r *MessageBlockRenderer) Render(msg *session.Message) *MessageBlock {
	var content string
	if msg.Role == session.RoleUser {
		content = r.renderUserMessage(msg)
	} else {
		content = r.renderAssistantMessage(msg)
	}
	return &MessageBlock{
		MessageID: msg.ID,
		Rendered:  content,
		Height:    countLines(content),
		Width:     r.width,
	}
}

func (r *MessageBlockRenderer) style(s lipgloss.Style) lipgloss.Style {
	if r.plain {
		return lipgloss.NewStyle()
	}
	return s
}

// renderUserMessage draws the prompt marker on the first line and indents
// continuation lines under it.
func (r *MessageBlockRenderer) renderUserMessage(msg *session.Message) string {
	promptStyle := r.style(lipgloss.NewStyle().
		Foreground(r.theme.Primary).
		Bold(true).
		Background(r.theme.UserMsgBg))
	bodyStyle := r.style(lipgloss.NewStyle().Background(r.theme.UserMsgBg))

	wrapWidth := max(r.width-lipgloss.Width(userPrompt), 20)
	lines := strings.Split(wordwrap.String(strings.TrimSpace(msg.Content), wrapWidth), "\n")

	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString(promptStyle.Render(userPrompt))
		} else {
			b.WriteString("\n")
			b.WriteString(bodyStyle.Render("  "))
		}
		b.WriteString(bodyStyle.Render(line))
	}
	return b.String()
}

// renderAssistantMessage draws the cleaned reply, the components the
// reply carried, and a footer with the time.
func (r *MessageBlockRenderer) renderAssistantMessage(msg *session.Message) string {
	var parts []string

	res := r.pipeline.Process(msg.Content)
	if r.glamour {
		if s := ui.RenderMarkdown(res.Cleaned, r.width); s != "" {
			parts = append(parts, s)
		}
	} else if s := r.blocks.Render(res.Blocks); s != "" {
		parts = append(parts, s)
	}

	if s := components.RenderAll(msg.Components, msg.Content, r.width); s != "" {
		if r.plain {
			s = ansi.Strip(s)
		}
		parts = append(parts, s)
	}

	if footer := r.footer(msg); footer != "" {
		parts = append(parts, footer)
	}
	return strings.Join(parts, "\n\n")
}

func (r *MessageBlockRenderer) footer(msg *session.Message) string {
	var fields []string
	if !msg.CreatedAt.IsZero() {
		fields = append(fields, msg.CreatedAt.Local().Format("15:04"))
	}
	switch msg.ToolCallsMade {
	case 0:
	case 1:
		fields = append(fields, "1 tool call")
	default:
		fields = append(fields, fmt.Sprintf("%d tool calls", msg.ToolCallsMade))
	}
	if len(fields) == 0 {
		return ""
	}
	return r.style(lipgloss.NewStyle().Foreground(r.theme.Muted)).Render(strings.Join(fields, " · "))
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// RenderEmptyHistory renders the "no messages" placeholder.
func RenderEmptyHistory(theme *ui.Theme) string {
	return lipgloss.NewStyle().
		Foreground(theme.Muted).
		Render("No messages yet. Ask about alerts, agents or vulnerabilities and press Enter.")
}
