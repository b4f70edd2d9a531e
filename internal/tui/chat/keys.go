package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the chat bindings. Slash commands cover everything else.
type KeyMap struct {
	Quit    key.Binding
	Cancel  key.Binding // cancels a pending reply, else quits
	Send    key.Binding
	Newline key.Binding
	Tab     key.Binding

	PageUp   key.Binding
	PageDown key.Binding

	Clear      key.Binding
	NewSession key.Binding
	CopyReply  key.Binding
}

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:       binding("quit", "ctrl+c"),
		Cancel:     binding("cancel", "esc"),
		Send:       binding("send", "enter"),
		Newline:    binding("newline", "ctrl+j", "alt+enter"),
		Tab:        binding("complete", "tab"),
		PageUp:     binding("scroll up", "pgup"),
		PageDown:   binding("scroll down", "pgdown"),
		Clear:      binding("clear", "ctrl+k"),
		NewSession: binding("new chat", "ctrl+n"),
		CopyReply:  binding("copy reply", "ctrl+y"),
	}
}

// FooterHelp lists the bindings shown under the input.
func (k KeyMap) FooterHelp() string {
	var parts []string
	for _, b := range []key.Binding{k.Send, k.Newline, k.CopyReply, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	parts = append(parts[:len(parts)-1], "/help commands", parts[len(parts)-1])
	return strings.Join(parts, " · ")
}
