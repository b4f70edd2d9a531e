package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/serve"
	"github.com/samsaffron/wazuh-chat/internal/signal"
)

var (
	serveSetup       bool
	serveIdleTimeout time.Duration
)

var servePlatforms = []string{"telegram"}

var serveCmd = &cobra.Command{
	Use:   "serve <platform>",
	Short: "Relay the assistant to a messaging platform",
	Long: `Relay the assistant to a messaging platform. Each chat gets its own
conversation, which restarts after the idle timeout or on /reset.

Platforms:
  telegram  long-polls a Telegram bot (telegram.token)

Examples:
  wazuh-chat serve telegram --setup     # enter the bot token and allowed users
  wazuh-chat serve telegram
  wazuh-chat serve telegram --idle-timeout 30m`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: servePlatforms,
	RunE:      runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSetup, "setup", false, "Run the platform setup before serving")
	serveCmd.Flags().DurationVar(&serveIdleTimeout, "idle-timeout", 0, "Start a new conversation after this much inactivity (default telegram.idle_timeout)")
	rootCmd.AddCommand(serveCmd)
}

func newPlatform(name string, cfg *config.Config, path string) (serve.Platform, error) {
	switch strings.ToLower(name) {
	case "telegram":
		return serve.NewTelegramPlatform(cfg.Telegram, path), nil
	default:
		return nil, fmt.Errorf("unknown platform %q (available: %s)", name, strings.Join(servePlatforms, ", "))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveIdleTimeout < 0 {
		return fmt.Errorf("--idle-timeout must not be negative")
	}
	if !slices.Contains(servePlatforms, strings.ToLower(args[0])) {
		return fmt.Errorf("unknown platform %q (available: %s)", args[0], strings.Join(servePlatforms, ", "))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}

	platform, err := newPlatform(args[0], cfg, path)
	if err != nil {
		return err
	}
	if serveSetup || platform.NeedsSetup() {
		if err := platform.RunSetup(); err != nil {
			return fmt.Errorf("%s setup: %w", platform.Name(), err)
		}
		// Pick up what setup saved.
		if cfg, err = loadConfig(); err != nil {
			return err
		}
		if platform, err = newPlatform(args[0], cfg, path); err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext()
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client := newBackend(cfg, logger)
	if ok, err := client.Health(ctx); err != nil {
		logger.Warn("backend is unreachable; replies will fail until it is up", zap.String("url", client.BaseURL()), zap.Error(err))
	} else if !ok {
		logger.Warn("backend reports degraded health", zap.String("url", client.BaseURL()))
	}

	idle := cfg.Telegram.IdleTimeout
	if serveIdleTimeout > 0 {
		idle = serveIdleTimeout
	}

	logger.Info("relay starting", zap.String("platform", platform.Name()), zap.Duration("idle_timeout", idle))
	err = platform.Run(ctx, serve.Settings{
		Backend:     client,
		Store:       store,
		Pipeline:    newPipeline(cfg, logger),
		Logger:      logger,
		IdleTimeout: idle,
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("%s relay: %w", platform.Name(), err)
	}
	logger.Info("relay stopped", zap.String("platform", platform.Name()))
	return nil
}
