package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/samsaffron/wazuh-chat/internal/session"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{
			Name:        "help",
			Aliases:     []string{"h", "?"},
			Description: "Show help and available commands",
			Usage:       "/help",
		},
		{
			Name:        "new",
			Aliases:     []string{"n"},
			Description: "Start a new conversation",
			Usage:       "/new",
		},
		{
			Name:        "sessions",
			Aliases:     []string{"ls"},
			Description: "List saved conversations",
			Usage:       "/sessions [filter]",
		},
		{
			Name:        "switch",
			Aliases:     []string{"resume", "r"},
			Description: "Continue a saved conversation",
			Usage:       "/switch <number|id>",
		},
		{
			Name:        "clear",
			Aliases:     []string{"c"},
			Description: "Clear the screen (the conversation stays saved)",
			Usage:       "/clear",
		},
		{
			Name:        "copy",
			Aliases:     []string{"y"},
			Description: "Copy the last reply to the clipboard",
			Usage:       "/copy",
		},
		{
			Name:        "quit",
			Aliases:     []string{"q", "exit"},
			Description: "Exit chat",
			Usage:       "/quit",
		},
	}
}

// CommandSource implements fuzzy.Source for command searching
type CommandSource []Command

func (c CommandSource) String(i int) string {
	return c[i].Name
}

func (c CommandSource) Len() int {
	return len(c)
}

// FilterCommands returns commands matching the query using fuzzy search.
func FilterCommands(query string) []Command {
	commands := AllCommands()
	query = strings.ToLower(strings.TrimPrefix(query, "/"))
	if query == "" {
		return commands
	}

	// Exact name or alias wins, but only for multi-character queries so
	// "/s" still offers both sessions and switch.
	if len(query) > 1 {
		if cmd, ok := lookupCommand(commands, query); ok {
			return []Command{cmd}
		}
	}

	var result []Command
	for _, match := range fuzzy.FindFrom(query, CommandSource(commands)) {
		result = append(result, commands[match.Index])
	}
	return result
}

func lookupCommand(commands []Command, name string) (Command, bool) {
	for _, cmd := range commands {
		if cmd.Name == name || slices.Contains(cmd.Aliases, name) {
			return cmd, true
		}
	}
	return Command{}, false
}

// ExecuteCommand handles slash command execution
func (m *Model) ExecuteCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmdName := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	cmd, ok := lookupCommand(AllCommands(), cmdName)
	if !ok {
		var prefixMatches []Command
		for _, c := range AllCommands() {
			if strings.HasPrefix(c.Name, cmdName) {
				prefixMatches = append(prefixMatches, c)
			}
		}
		switch len(prefixMatches) {
		case 0:
			return m.showSystemMessage(fmt.Sprintf("Unknown command: /%s\nType /help for available commands.", cmdName))
		case 1:
			cmd = prefixMatches[0]
		default:
			var names []string
			for _, c := range prefixMatches {
				names = append(names, "/"+c.Name)
			}
			return m.showSystemMessage(fmt.Sprintf("Ambiguous command: /%s\nDid you mean: %s?", cmdName, strings.Join(names, ", ")))
		}
	}

	switch cmd.Name {
	case "help":
		return m.cmdHelp()
	case "new":
		return m.cmdNew()
	case "sessions":
		return m.cmdSessions(strings.Join(args, " "))
	case "switch":
		return m.cmdSwitch(args)
	case "clear":
		return m.cmdClear()
	case "copy":
		return m.cmdCopy()
	case "quit":
		return m.quit()
	default:
		return m.showSystemMessage(fmt.Sprintf("Command /%s is not yet implemented.", cmd.Name))
	}
}

// showSystemMessage prints content below the conversation. It is not saved.
func (m *Model) showSystemMessage(content string) (tea.Model, tea.Cmd) {
	m.notice = content
	m.refresh()
	return m, nil
}

func (m *Model) cmdHelp() (tea.Model, tea.Cmd) {
	var b strings.Builder
	b.WriteString("Commands\n")
	for _, cmd := range AllCommands() {
		fmt.Fprintf(&b, "  %-22s %s", cmd.Usage, cmd.Description)
		if len(cmd.Aliases) > 0 {
			fmt.Fprintf(&b, " (aliases: %s)", strings.Join(cmd.Aliases, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nKeys\n")
	for _, k := range []struct{ keys, desc string }{
		{"enter", "send message"},
		{"ctrl+j, alt+enter", "insert newline"},
		{"tab", "complete command"},
		{"pgup, pgdown", "scroll history"},
		{"ctrl+k", "clear screen"},
		{"ctrl+n", "new conversation"},
		{"esc", "cancel request, or quit when idle"},
		{"ctrl+c", "quit"},
	} {
		fmt.Fprintf(&b, "  %-22s %s\n", k.keys, k.desc)
	}
	return m.showSystemMessage(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) cmdNew() (tea.Model, tea.Cmd) {
	m.cancelRequest()
	if err := m.store.ClearCurrent(context.Background()); err != nil {
		m.logger.Sugar().Warnf("clear current session: %v", err)
	}
	m.sess = nil
	m.messages = nil
	return m.showSystemMessage("Started a new conversation.")
}

func (m *Model) cmdClear() (tea.Model, tea.Cmd) {
	m.messages = nil
	m.notice = ""
	m.refresh()
	return m, nil
}

func (m *Model) cmdCopy() (tea.Model, tea.Cmd) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.Role != session.RoleAssistant {
			continue
		}
		if err := m.copy(m.pipeline.Process(msg.Content).Cleaned); err != nil {
			m.logger.Sugar().Warnf("copy to clipboard: %v", err)
			return m.showSystemMessage(fmt.Sprintf("Could not copy: %v", err))
		}
		return m.showSystemMessage("Copied the last reply to the clipboard.")
	}
	return m.showSystemMessage("Nothing to copy yet.")
}

func (m *Model) cmdSessions(filter string) (tea.Model, tea.Cmd) {
	list, err := m.store.List(context.Background(), session.ListOptions{Limit: 50})
	if err != nil {
		return m.showSystemMessage(fmt.Sprintf("Could not list conversations: %v", err))
	}
	if filter != "" {
		list = session.FilterByTitle(list, filter)
	}
	if len(list) == 0 {
		if filter != "" {
			return m.showSystemMessage(fmt.Sprintf("No conversations match %q.", filter))
		}
		return m.showSystemMessage("No saved conversations.")
	}
	return m.showSystemMessage(m.formatSessionList(session.GroupByDate(list, time.Now())))
}

func (m *Model) formatSessionList(groups session.DateGroups) string {
	var b strings.Builder
	section := func(name string, list []session.Session) {
		if len(list) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(name + "\n")
		for _, s := range list {
			marker := " "
			if m.sess != nil && s.ID == m.sess.ID {
				marker = "●"
			}
			fmt.Fprintf(&b, "%s #%-4d %s  (%d messages)\n", marker, s.Number, s.DisplayTitle(), s.MessageCount)
		}
	}
	section(session.GroupToday, groups.Today)
	section(session.GroupYesterday, groups.Yesterday)
	section(session.GroupOlder, groups.Older)
	b.WriteString("\nUse /switch <number> to continue a conversation.")
	return b.String()
}

func (m *Model) cmdSwitch(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m.showSystemMessage("Usage: /switch <number|id>\nType /sessions to see saved conversations.")
	}

	ctx := context.Background()
	sess, err := session.Resolve(ctx, m.store, args[0])
	if err != nil {
		var ambiguous *session.AmbiguousError
		switch {
		case errors.As(err, &ambiguous):
			return m.showSystemMessage(fmt.Sprintf("%q matches more than one conversation; use its number.", args[0]))
		case errors.Is(err, session.ErrNotFound):
			return m.showSystemMessage(fmt.Sprintf("No conversation %q.", args[0]))
		default:
			return m.showSystemMessage(fmt.Sprintf("Could not open conversation: %v", err))
		}
	}

	messages, err := m.store.Context(ctx, sess.ID)
	if err != nil {
		return m.showSystemMessage(fmt.Sprintf("Could not load conversation: %v", err))
	}

	m.cancelRequest()
	if err := m.store.SetCurrent(ctx, sess.ID); err != nil {
		m.logger.Sugar().Warnf("set current session: %v", err)
	}
	m.sess = sess
	m.messages = messages
	return m.showSystemMessage(fmt.Sprintf("Switched to #%d %s.", sess.Number, sess.DisplayTitle()))
}
