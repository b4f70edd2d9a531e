package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/signal"
	"github.com/samsaffron/wazuh-chat/internal/tui/chat"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

var (
	chatSession string
	chatNew     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the assistant",
	Long: `Start an interactive chat. The last conversation is resumed unless
--new is given.

Examples:
  wazuh-chat chat
  wazuh-chat chat --new
  wazuh-chat chat --session 12
  wazuh-chat chat -s 3f2a`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Resume a conversation by number or ID")
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "Start a new conversation")
	chatCmd.MarkFlagsMutuallyExclusive("session", "new")
	_ = chatCmd.RegisterFlagCompletionFunc("session", SessionArgCompletion)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := fileLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext()
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := resumeSession(ctx, store, chatSession, chatNew)
	if err != nil {
		return err
	}
	return runChatTUI(ctx, cfg, store, sess, logger)
}

// resumeSession picks the conversation chat starts in: none with fresh,
// the one named by ref, else the current one (which may be nil).
func resumeSession(ctx context.Context, store session.Store, ref string, fresh bool) (*session.Session, error) {
	if fresh {
		if err := store.ClearCurrent(ctx); err != nil {
			return nil, fmt.Errorf("failed to start a new conversation: %w", err)
		}
		return nil, nil
	}
	if ref == "" {
		return store.GetCurrent(ctx)
	}
	sess, err := resolveSession(ctx, store, ref)
	if err != nil {
		return nil, err
	}
	if err := store.SetCurrent(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("failed to resume conversation: %w", err)
	}
	return sess, nil
}

// resolveSession wraps session.Resolve with messages fit for the terminal.
func resolveSession(ctx context.Context, store session.Store, ref string) (*session.Session, error) {
	sess, err := session.Resolve(ctx, store, ref)
	if err == nil {
		return sess, nil
	}
	var ambiguous *session.AmbiguousError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil, fmt.Errorf("conversation %q not found", ref)
	case errors.As(err, &ambiguous):
		return nil, fmt.Errorf("%q matches more than one conversation; use its number", ref)
	default:
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
}

func runChatTUI(ctx context.Context, cfg *config.Config, store session.Store, sess *session.Session, logger *zap.Logger) error {
	model := chat.New(chat.Options{
		Store:   store,
		Backend: newBackend(cfg, logger),
		Session: sess,
		Render:  renderOptions(cfg, logger),
		Styles:  ui.DefaultStyles(),
		Logger:  logger,
	})

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
