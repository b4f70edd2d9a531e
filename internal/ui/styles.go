package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/samsaffron/wazuh-chat/internal/config"
)

// Theme defines the color palette for the UI
type Theme struct {
	Primary   lipgloss.Color // accents: bold text, inline code, commands
	Secondary lipgloss.Color // headers, links, borders

	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color // blockquotes, italic
	Muted   lipgloss.Color // timestamps, rules, hints
	Text    lipgloss.Color

	Spinner lipgloss.Color
	Border  lipgloss.Color

	UserMsgBg lipgloss.Color // background for user messages in chat
}

// DefaultTheme returns the default color theme (gruvbox)
func DefaultTheme() *Theme {
	t := themeFromPreset(presets[0].Config)
	t.UserMsgBg = lipgloss.Color("#3c3836")
	return t
}

func themeFromPreset(c config.ThemeConfig) *Theme {
	return &Theme{
		Primary:   lipgloss.Color(c.Primary),
		Secondary: lipgloss.Color(c.Secondary),
		Success:   lipgloss.Color(c.Success),
		Error:     lipgloss.Color(c.Error),
		Warning:   lipgloss.Color(c.Warning),
		Muted:     lipgloss.Color(c.Muted),
		Text:      lipgloss.Color(c.Text),
		Spinner:   lipgloss.Color(c.Spinner),
		Border:    lipgloss.Color(c.Secondary),
		UserMsgBg: lipgloss.Color("#3c3836"),
	}
}

// ThemeFromConfig starts from the configured preset (gruvbox when unset or
// unknown) and applies individual color overrides.
func ThemeFromConfig(cfg config.ThemeConfig) *Theme {
	theme := DefaultTheme()
	if p := GetPresetTheme(cfg.Preset); p != nil {
		theme = themeFromPreset(p.Config)
	}

	override := func(dst *lipgloss.Color, v string) {
		if v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	override(&theme.Primary, cfg.Primary)
	override(&theme.Secondary, cfg.Secondary)
	override(&theme.Border, cfg.Secondary) // border follows secondary
	override(&theme.Success, cfg.Success)
	override(&theme.Error, cfg.Error)
	override(&theme.Warning, cfg.Warning)
	override(&theme.Muted, cfg.Muted)
	override(&theme.Text, cfg.Text)
	override(&theme.Spinner, cfg.Spinner)
	return theme
}

var currentTheme = DefaultTheme()

// GetTheme returns the current active theme
func GetTheme() *Theme {
	return currentTheme
}

// SetTheme sets the current active theme
func SetTheme(t *Theme) {
	currentTheme = t
}

// InitTheme initializes the theme from config
func InitTheme(cfg config.ThemeConfig) {
	SetTheme(ThemeFromConfig(cfg))
}

// Status indicators
const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
	DotIcon     = "●"
)

// Styles holds text styles bound to one output's renderer.
type Styles struct {
	theme *Theme

	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
	Bold        lipgloss.Style
	Highlighted lipgloss.Style
	Spinner     lipgloss.Style
	Command     lipgloss.Style
	Footer      lipgloss.Style
	UserPrompt  lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	return NewStylesWithTheme(output, currentTheme)
}

// NewStylesWithTheme creates styles with a specific theme
func NewStylesWithTheme(output *os.File, theme *Theme) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		theme:       theme,
		Title:       r.NewStyle().Bold(true).Foreground(theme.Text),
		Subtitle:    r.NewStyle().Foreground(theme.Muted),
		Success:     r.NewStyle().Foreground(theme.Success),
		Error:       r.NewStyle().Foreground(theme.Error),
		Warning:     r.NewStyle().Foreground(theme.Warning),
		Muted:       r.NewStyle().Foreground(theme.Muted),
		Bold:        r.NewStyle().Bold(true),
		Highlighted: r.NewStyle().Bold(true).Foreground(theme.Primary),
		Spinner:     r.NewStyle().Foreground(theme.Spinner),
		Command:     r.NewStyle().Bold(true).Foreground(theme.Primary),
		Footer:      r.NewStyle().Foreground(theme.Muted),
		UserPrompt:  r.NewStyle().Bold(true).Foreground(theme.Primary),
	}
}

// DefaultStyles returns styles for stdout
func DefaultStyles() *Styles {
	return NewStyles(os.Stdout)
}

// Theme returns the theme used by these styles
func (s *Styles) Theme() *Theme {
	return s.theme
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// Truncate shortens s to at most maxWidth display cells with an ellipsis.
func Truncate(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
