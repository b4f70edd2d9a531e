package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samsaffron/wazuh-chat/internal/session"
)

// SessionArgCompletion completes conversation numbers, described by title.
// Used for positional <ref> arguments and --session flags.
func SessionArgCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Positional refs are always the first argument
	if len(args) > 0 && cmd.ValidArgsFunction != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	cfg, err := loadConfig()
	if err != nil || !cfg.Sessions.Enabled {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	store, err := session.NewStore(cfg.Sessions)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer store.Close()

	list, err := store.List(context.Background(), session.ListOptions{Limit: 50})
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return sessionCompletions(list, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// sessionCompletions formats list as "number\ttitle" entries matching
// toComplete. The title is shown as the description by shells that
// support it.
func sessionCompletions(list []session.Session, toComplete string) []string {
	prefix := strings.TrimPrefix(toComplete, "#")
	var completions []string
	for _, s := range list {
		n := strconv.FormatInt(s.Number, 10)
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		completions = append(completions, n+"\t"+s.DisplayTitle())
	}
	return completions
}
