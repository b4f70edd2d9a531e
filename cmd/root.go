package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.config/wazuh-chat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error, off")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Assistant backend URL (overrides backend.url)")
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error", "off"}, cobra.ShellCompDirectiveNoFileComp
	})
}

var rootCmd = &cobra.Command{
	Use:   "wazuh-chat",
	Short: "Talk to the Wazuh security assistant from the terminal",
	Long: `wazuh-chat is a terminal client for the Wazuh security assistant.
Replies are cleaned of duplicated summaries and rendered as formatted text.

Examples:
  wazuh-chat chat                          # interactive chat, resumes the last conversation
  wazuh-chat ask "which agents are disconnected?"
  wazuh-chat render reply.md --format telegram
  wazuh-chat sessions                      # saved conversations
  wazuh-chat serve telegram                # relay the assistant to a Telegram bot

  wazuh-chat config                        # view configuration
  wazuh-chat config completion zsh         # shell completions`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
}

var (
	flagConfig   string
	flagLogLevel string
	flagBackend  string
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
