package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/markdown"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

var configThemeCmd = &cobra.Command{
	Use:   "theme [preset]",
	Short: "Select a UI color theme",
	Long: `Pick a color preset. Without an argument a selector opens with a live
preview of an assistant reply in each theme.

Presets: ` + strings.Join(ui.PresetThemeNames(), ", ") + `

Examples:
  wazuh-chat config theme
  wazuh-chat config theme nord`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: ui.PresetThemeNames(),
	RunE:      runConfigTheme,
}

func init() {
	configCmd.AddCommand(configThemeCmd)
}

func runConfigTheme(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := ""
	if len(args) == 1 {
		name = strings.ToLower(args[0])
	} else {
		current := cfg.Theme.Preset
		if current == "" {
			current = ui.PresetThemeNames()[0]
		}
		if name, err = runThemeSelector(current, cfg.Render.CodeStyle); err != nil {
			return err
		}
		if name == "" {
			return nil
		}
	}

	preset := ui.GetPresetTheme(name)
	if preset == nil {
		return fmt.Errorf("unknown theme %q: must be one of %s", name, strings.Join(ui.PresetThemeNames(), ", "))
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	if err := config.Set(path, "theme.preset", preset.Name); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Theme set to %s\n", preset.Name)
	if hasColorOverrides(cfg.Theme) {
		fmt.Fprintln(out, "Note: colors set under theme: in the config file still override the preset.")
	}
	return nil
}

func hasColorOverrides(t config.ThemeConfig) bool {
	for _, c := range []string{t.Primary, t.Secondary, t.Success, t.Error, t.Warning, t.Muted, t.Text, t.Spinner} {
		if c != "" {
			return true
		}
	}
	return false
}

// previewReply is drawn with each candidate theme.
var previewReply = markdown.Render("## Failed logins on web-01\n\n" +
	"**14** attempts from `10.0.0.7` in the last hour:\n\n" +
	"- rule 5710: *sshd: attempt to login using a non-existent user*\n" +
	"- rule 5712: brute force trying to get access\n\n" +
	"> Consider blocking the source with an active response.")

var themeKeys = struct {
	up, down, choose, cancel key.Binding
}{
	up:     key.NewBinding(key.WithKeys("up", "k")),
	down:   key.NewBinding(key.WithKeys("down", "j")),
	choose: key.NewBinding(key.WithKeys("enter")),
	cancel: key.NewBinding(key.WithKeys("esc", "q", "ctrl+c")),
}

// themePicker lists presets next to a preview of the one under the cursor.
type themePicker struct {
	names     []string
	cursor    int
	current   string
	codeStyle string
	chosen    string
}

func newThemePicker(current, codeStyle string) themePicker {
	m := themePicker{names: ui.PresetThemeNames(), current: current, codeStyle: codeStyle}
	for i, name := range m.names {
		if name == current {
			m.cursor = i
		}
	}
	return m
}

func (m themePicker) Init() tea.Cmd { return nil }

func (m themePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, themeKeys.up):
		m.cursor = (m.cursor + len(m.names) - 1) % len(m.names)
	case key.Matches(keyMsg, themeKeys.down):
		m.cursor = (m.cursor + 1) % len(m.names)
	case key.Matches(keyMsg, themeKeys.choose):
		m.chosen = m.names[m.cursor]
		return m, tea.Quit
	case key.Matches(keyMsg, themeKeys.cancel):
		return m, tea.Quit
	}
	return m, nil
}

func (m themePicker) View() string {
	preset := ui.GetPresetTheme(m.names[m.cursor])
	theme := ui.ThemeFromConfig(config.ThemeConfig{Preset: preset.Name})
	muted := lipgloss.NewStyle().Foreground(theme.Muted)

	var list strings.Builder
	list.WriteString(lipgloss.NewStyle().Bold(true).Render("Theme") + "\n\n")
	for i, name := range m.names {
		label := "  " + name
		if name == m.current {
			label += muted.Render(" (current)")
		}
		if i == m.cursor {
			label = lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render("❯ " + name)
		}
		list.WriteString(label + "\n")
	}
	list.WriteString("\n" + muted.Render("↑/↓ move · enter save · esc cancel"))

	r := &ui.BlockRenderer{Width: 56, Theme: theme, CodeStyle: m.codeStyle}
	preview := muted.Render(preset.Description) + "\n\n" +
		lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render("❯ any failed ssh logins today?") + "\n\n" +
		r.Render(previewReply) + "\n\n" +
		lipgloss.NewStyle().Foreground(theme.Success).Render("● active") + "  " +
		lipgloss.NewStyle().Foreground(theme.Error).Render("● error")

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1).
		Render(preview)
	return lipgloss.JoinHorizontal(lipgloss.Top, lipgloss.NewStyle().Width(24).Render(list.String()), panel)
}

// runThemeSelector returns the chosen preset, or "" when cancelled.
// It talks to /dev/tty so it works with redirected output.
func runThemeSelector(current, codeStyle string) (string, error) {
	var opts []tea.ProgramOption
	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		defer tty.Close()
		opts = append(opts, tea.WithInput(tty), tea.WithOutput(tty))
	}

	final, err := tea.NewProgram(newThemePicker(current, codeStyle), opts...).Run()
	if err != nil {
		return "", err
	}
	return final.(themePicker).chosen, nil
}
