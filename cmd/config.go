package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/dedupe"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wazuh-chat configuration",
	Long: `View or edit your wazuh-chat configuration.

Every key can also be set with an environment variable, for example
WAZUH_CHAT_BACKEND_URL or WAZUH_CHAT_TELEGRAM_TOKEN.

Examples:
  wazuh-chat config                     # show effective config
  wazuh-chat config init                # write the default config file
  wazuh-chat config set backend.url http://wazuh-assistant:8000
  wazuh-chat config get dedupe.min_length
  wazuh-chat config edit                # edit in $EDITOR
  wazuh-chat config completion zsh      # generate shell completions`,
	Args: cobra.NoArgs,
	RunE: runConfigShow, // Default to show
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration (secrets masked)",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file in $EDITOR",
	Args:  cobra.NoArgs,
	RunE:  runConfigEdit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Write a configuration file holding the default values. An existing file is kept unless --force is given.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configCompletionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script and print setup instructions.

Examples:
  wazuh-chat config completion bash
  wazuh-chat config completion zsh --install
  wazuh-chat config completion fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runConfigCompletion,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value. The result is validated before the file is
written. List values take a comma-separated string.

Examples:
  wazuh-chat config set backend.url http://localhost:8000
  wazuh-chat config set render.renderer glamour
  wazuh-chat config set telegram.allowed_users "12345,@alice"
  wazuh-chat config set dedupe.disabled_rules lead-in-summary`,
	Args:              cobra.ExactArgs(2),
	RunE:              runConfigSet,
	ValidArgsFunction: configSetCompletion,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get an effective configuration value",
	Long: `Get an effective configuration value, after defaults and environment
overrides are applied.

Examples:
  wazuh-chat config get backend.url
  wazuh-chat config get dedupe`,
	Args:              cobra.ExactArgs(1),
	RunE:              runConfigGet,
	ValidArgsFunction: configGetCompletion,
}

var (
	configForce        bool
	installCompletions bool
)

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCompletionCmd.Flags().BoolVar(&installCompletions, "install", false, "Install completions to the standard location")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCompletionCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "# %s\n", path)
	} else {
		fmt.Fprintf(out, "# %s (not created yet, showing defaults)\n", path)
	}
	_, err = out.Write(data)
	return err
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Create default config if it doesn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(config.Default(), path); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	// Get editor from environment
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return err
	}

	// Report mistakes now rather than on the next run.
	if _, err := config.LoadWith(viper.New(), path); err != nil {
		return fmt.Errorf("config saved but invalid: %w", err)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}

func runConfigCompletion(cmd *cobra.Command, args []string) error {
	shell := args[0]

	if installCompletions {
		return installShellCompletion(shell)
	}

	// Just output to stdout
	out := cmd.OutOrStdout()
	switch shell {
	case "bash":
		return rootCmd.GenBashCompletion(out)
	case "zsh":
		return rootCmd.GenZshCompletion(out)
	case "fish":
		return rootCmd.GenFishCompletion(out, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(out)
	}
	return nil
}

func installShellCompletion(shell string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	var path string
	var buf = new(bytes.Buffer)

	switch shell {
	case "bash":
		path = filepath.Join(home, ".bash_completion.d", "wazuh-chat")
		err = rootCmd.GenBashCompletion(buf)
	case "zsh":
		// Use ~/.local/share/zsh/site-functions which is the XDG standard
		path = filepath.Join(home, ".local", "share", "zsh", "site-functions", "_wazuh-chat")
		err = rootCmd.GenZshCompletion(buf)
	case "fish":
		path = filepath.Join(home, ".config", "fish", "completions", "wazuh-chat.fish")
		err = rootCmd.GenFishCompletion(buf, true)
	case "powershell":
		path = filepath.Join(home, ".config", "powershell", "completions", "wazuh-chat.ps1")
		err = rootCmd.GenPowerShellCompletionWithDesc(buf)
	default:
		return fmt.Errorf("unknown shell: %s", shell)
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write completion file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Installed completions to %s\n", path)

	// Print shell-specific instructions
	switch shell {
	case "bash":
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Add to ~/.bashrc:")
		fmt.Fprintf(os.Stderr, "  source %s\n", path)
	case "zsh":
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Ensure ~/.zshrc has (before compinit):")
		fmt.Fprintf(os.Stderr, "  fpath+=(%s)\n", dir)
		fmt.Fprintln(os.Stderr, "  autoload -U compinit && compinit")
	case "fish":
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Completions will be loaded automatically.")
	case "powershell":
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Add to your PowerShell profile:")
		fmt.Fprintf(os.Stderr, "  . %s\n", path)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	key, value := args[0], args[1]
	if err := config.Set(path, key, value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", strings.ToLower(key), path)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	value, err := getYAMLValue(&root, strings.Split(strings.ToLower(args[0]), "."))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

// getYAMLValue returns the value at path. Scalars print as they are,
// lists of scalars comma-separated, and mappings as YAML.
func getYAMLValue(root *yaml.Node, path []string) (string, error) {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return "", fmt.Errorf("invalid document structure")
	}

	current := root.Content[0]
	for _, part := range path {
		if current.Kind != yaml.MappingNode {
			return "", fmt.Errorf("path not found: expected mapping")
		}

		found := false
		for j := 0; j < len(current.Content); j += 2 {
			if current.Content[j].Value == part {
				current = current.Content[j+1]
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("key not found: %s", part)
		}
	}

	switch current.Kind {
	case yaml.ScalarNode:
		return current.Value, nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(current.Content))
		for _, item := range current.Content {
			if item.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("value is not a list of scalars")
			}
			items = append(items, item.Value)
		}
		return strings.Join(items, ","), nil
	default:
		out, err := yaml.Marshal(current)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(out), "\n"), nil
	}
}

func configSetCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return configKeyCompletions(toComplete), cobra.ShellCompDirectiveNoFileComp
	case 1:
		return configValueCompletions(args[0], toComplete), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func configGetCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return configKeyCompletions(toComplete), cobra.ShellCompDirectiveNoFileComp
}

// configKeyCompletions lists every known dotted key.
func configKeyCompletions(toComplete string) []string {
	v := viper.New()
	config.SetDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return filterPrefix(keys, strings.ToLower(toComplete))
}

func configValueCompletions(key, toComplete string) []string {
	var values []string
	switch strings.ToLower(key) {
	case "render.renderer":
		values = []string{config.RendererNative, config.RendererGlamour}
	case "log.level":
		values = []string{"debug", "info", "warn", "error", "off"}
	case "theme.preset":
		values = ui.PresetThemeNames()
	case "render.code_style":
		values = []string{"monokai", "dracula", "github", "nord", "solarized-dark", "gruvbox"}
	case "dedupe.disabled_rules":
		values = dedupe.DefaultPolicy().RuleNames()
	default:
		v := viper.New()
		config.SetDefaults(v)
		if _, ok := v.Get(strings.ToLower(key)).(bool); ok {
			values = []string{"true", "false"}
		}
	}
	return filterPrefix(values, toComplete)
}

func filterPrefix(items []string, prefix string) []string {
	var out []string
	for _, item := range items {
		if strings.HasPrefix(item, prefix) && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}
