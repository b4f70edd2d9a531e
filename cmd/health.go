package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/samsaffron/wazuh-chat/internal/signal"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the assistant backend is reachable",
	Long: `Query the backend health endpoint. Exits non-zero unless the backend
is healthy and connected to the Wazuh MCP server.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext()
	defer stop()

	client := newBackend(cfg, logger)
	start := time.Now()
	status, err := client.HealthStatus(ctx)
	if err != nil {
		return fmt.Errorf("backend %s: %w", client.BaseURL(), err)
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	if healthJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			return err
		}
	} else {
		styles := ui.DefaultStyles()
		state := styles.FormatResult(status.Status == "healthy", status.Status)
		mcp := "connected"
		if !status.MCPConnected {
			mcp = styles.Error.Render("disconnected")
		}
		fmt.Fprintf(out, "Backend: %s\n", client.BaseURL())
		fmt.Fprintf(out, "Status:  %s (%s)\n", state, elapsed.Round(time.Millisecond))
		fmt.Fprintf(out, "MCP:     %s\n", mcp)
	}

	if status.Status != "healthy" {
		return fmt.Errorf("backend is %s", status.Status)
	}
	return nil
}
