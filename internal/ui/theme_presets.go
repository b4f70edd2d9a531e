package ui

import "github.com/samsaffron/wazuh-chat/internal/config"

// ThemePreset is a named palette selectable with theme.preset.
type ThemePreset struct {
	Name        string
	Description string
	Config      config.ThemeConfig
}

// presets in display order; the first is the default.
var presets = []ThemePreset{
	{
		Name:        "gruvbox",
		Description: "Retro groove color scheme (default)",
		Config: config.ThemeConfig{
			Primary: "#b8bb26", Secondary: "#83a598", Success: "#b8bb26", Error: "#fb4934",
			Warning: "#fabd2f", Muted: "#928374", Text: "#ebdbb2", Spinner: "#d3869b",
		},
	},
	{
		Name:        "wazuh",
		Description: "Blue accents matching the Wazuh dashboard",
		Config: config.ThemeConfig{
			Primary: "#3595f9", Secondary: "#06b6d4", Success: "#10b981", Error: "#ef4444",
			Warning: "#eab308", Muted: "#6b7280", Text: "#e5e7eb", Spinner: "#8b5cf6",
		},
	},
	{
		Name:        "dracula",
		Description: "Dark theme with purple accents",
		Config: config.ThemeConfig{
			Primary: "#bd93f9", Secondary: "#8be9fd", Success: "#50fa7b", Error: "#ff5555",
			Warning: "#f1fa8c", Muted: "#6272a4", Text: "#f8f8f2", Spinner: "#ff79c6",
		},
	},
	{
		Name:        "nord",
		Description: "Arctic, north-bluish palette",
		Config: config.ThemeConfig{
			Primary: "#88c0d0", Secondary: "#81a1c1", Success: "#a3be8c", Error: "#bf616a",
			Warning: "#ebcb8b", Muted: "#4c566a", Text: "#eceff4", Spinner: "#b48ead",
		},
	},
	{
		Name:        "classic",
		Description: "ANSI colors for limited terminals",
		Config: config.ThemeConfig{
			Primary: "10", Secondary: "4", Success: "10", Error: "9",
			Warning: "11", Muted: "245", Text: "15", Spinner: "205",
		},
	},
}

// PresetThemeNames lists the presets in display order.
func PresetThemeNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// GetPresetTheme returns a preset by name, or nil if not found
func GetPresetTheme(name string) *ThemePreset {
	for i := range presets {
		if presets[i].Name == name {
			p := presets[i]
			return &p
		}
	}
	return nil
}
