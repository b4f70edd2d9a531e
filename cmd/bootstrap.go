package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/samsaffron/wazuh-chat/internal/backend"
	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/logging"
	render "github.com/samsaffron/wazuh-chat/internal/render/chat"
	"github.com/samsaffron/wazuh-chat/internal/reply"
	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

const fallbackWidth = 80

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagBackend != "" {
		cfg.Backend.URL = flagBackend
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ui.InitTheme(cfg.Theme)
	return cfg, nil
}

// configPath is the file config commands read and write.
func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.GetConfigPath()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log)
}

// fileLogger is for full-screen commands, which must not write to the
// terminal: it logs only when log.file is set.
func fileLogger(cfg *config.Config) *zap.Logger {
	if cfg.Log.File == "" {
		return zap.NewNop()
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openStore opens the session store and removes expired conversations.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	store, err := session.NewStore(cfg.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	wrapped := session.NewLoggingStore(store, logger.Sugar().Warnf)
	if n, err := wrapped.CleanupExpired(ctx, time.Now()); err == nil && n > 0 {
		logger.Debug("removed expired sessions", zap.Int("count", n))
	}
	return wrapped, nil
}

// openSessionStore is openStore for commands that only manage history.
func openSessionStore(ctx context.Context) (*config.Config, session.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Sessions.Enabled {
		return nil, nil, fmt.Errorf("session storage is disabled in config")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func newBackend(cfg *config.Config, logger *zap.Logger) *backend.Client {
	return backend.New(cfg.Backend, logger)
}

func newPipeline(cfg *config.Config, logger *zap.Logger) *reply.Pipeline {
	return reply.FromConfig(cfg.Dedupe, cfg.Render, logger)
}

func renderOptions(cfg *config.Config, logger *zap.Logger) render.Options {
	return render.Options{
		Pipeline:  newPipeline(cfg, logger),
		Renderer:  cfg.Render.Renderer,
		CodeStyle: cfg.Render.CodeStyle,
	}
}

// outputWidth is the configured render width, else the terminal width.
func outputWidth(cfg *config.Config, f *os.File) int {
	if cfg != nil && cfg.Render.Width > 0 {
		return cfg.Render.Width
	}
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return fallbackWidth
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
