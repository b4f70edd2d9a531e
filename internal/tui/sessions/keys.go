package sessions

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines keybindings for the conversation picker
type KeyMap struct {
	Quit       key.Binding
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	GoToTop    key.Binding
	GoToBottom key.Binding

	Select         key.Binding
	Delete         key.Binding
	Search         key.Binding
	ToggleFullText key.Binding
	Sort           key.Binding
	Filter         key.Binding // cycles the status filter
}

// binding shows the first key in help.
func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:           binding("quit", "q", "esc"),
		Up:             binding("up", "k", "up"),
		Down:           binding("down", "j", "down"),
		PageUp:         binding("page up", "pgup", "ctrl+u"),
		PageDown:       binding("page down", "pgdown", "ctrl+d"),
		GoToTop:        binding("top", "g"),
		GoToBottom:     binding("bottom", "G"),
		Select:         binding("resume", "enter"),
		Delete:         binding("delete", "d"),
		Search:         binding("search", "/", "tab"),
		ToggleFullText: binding("full text", "ctrl+f"),
		Sort:           binding("sort", "s"),
		Filter:         binding("status", "f"),
	}
}

// HelpLine is the one-line key legend under the list.
func (k KeyMap) HelpLine() string {
	bindings := []key.Binding{k.Select, k.Delete, k.Search, k.ToggleFullText, k.Sort, k.Filter, k.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, "["+h.Key+"] "+h.Desc)
	}
	return strings.Join(parts, "  ")
}
