package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samsaffron/wazuh-chat/internal/backend"
	"github.com/samsaffron/wazuh-chat/internal/clipboard"
	render "github.com/samsaffron/wazuh-chat/internal/render/chat"
	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/signal"
)

var (
	askSession string
	askPlain   bool
	askJSON    bool
	askCopy    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a single question",
	Long: `Send one question to the assistant and print the rendered reply.
The exchange is saved as a new conversation unless --session names one
to continue.

Examples:
  wazuh-chat ask "how many critical alerts in the last 24 hours?"
  wazuh-chat ask -s 4 "and on web-01 only?"
  wazuh-chat ask --plain "list disconnected agents" | less
  wazuh-chat ask --json "agent summary" | jq .components`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Continue a conversation by number or ID")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "Print without colors or styling")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the raw backend response as JSON")
	askCmd.Flags().BoolVar(&askCopy, "copy", false, "Also copy the cleaned reply to the clipboard")
	askCmd.MarkFlagsMutuallyExclusive("plain", "json")
	_ = askCmd.RegisterFlagCompletionFunc("session", SessionArgCompletion)
	rootCmd.AddCommand(askCmd)
}

// Sender delivers a message to the assistant. *backend.Client implements it.
type Sender interface {
	Send(ctx context.Context, sessionID, message string) (*backend.ChatResponse, error)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var sess *session.Session
	if askSession != "" {
		if sess, err = resolveSession(ctx, store, askSession); err != nil {
			return err
		}
	}

	question := strings.Join(args, " ")
	resp, sess, err := exchange(ctx, store, newBackend(cfg, logger), sess, question)
	if err != nil {
		return err
	}
	logger.Debug("ask complete",
		zap.String("session", sess.ID),
		zap.Int("tool_calls", resp.ToolCallsMade),
		zap.Duration("processing", resp.ProcessingTime()))

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	opts := renderOptions(cfg, logger)
	opts.Plain = askPlain || !isTerminal(os.Stdout)
	writeReply(out, resp.ToMessage(sess.ID), outputWidth(cfg, os.Stdout), opts)

	if askCopy {
		if err := clipboard.CopyText(opts.Pipeline.Process(resp.Message).Cleaned); err != nil {
			return fmt.Errorf("failed to copy reply: %w", err)
		}
	}
	return nil
}

// exchange sends question in sess, creating the session when nil, and
// stores both sides. Saving messages is best effort; the LoggingStore
// reports failures. A failed send marks the session as errored.
func exchange(ctx context.Context, store session.Store, sender Sender, sess *session.Session, question string) (*backend.ChatResponse, *session.Session, error) {
	if sess == nil {
		sess = &session.Session{}
		if err := store.Create(ctx, sess); err != nil {
			return nil, nil, fmt.Errorf("failed to create conversation: %w", err)
		}
	}
	_ = store.AddMessage(ctx, sess.ID, session.NewMessage(sess.ID, session.RoleUser, question))

	resp, err := sender.Send(ctx, sess.ID, question)
	if err != nil {
		markSession(ctx, store, sess, session.StatusError)
		return nil, sess, err
	}

	_ = store.AddMessage(ctx, sess.ID, resp.ToMessage(sess.ID))
	markSession(ctx, store, sess, session.StatusActive)
	return resp, sess, nil
}

// markSession records status when it changed.
func markSession(ctx context.Context, store session.Store, sess *session.Session, status session.SessionStatus) {
	current, err := store.Get(ctx, sess.ID)
	if err != nil || current.Status == status {
		return
	}
	current.Status = status
	_ = store.Update(ctx, current)
}

func writeReply(w io.Writer, msg *session.Message, width int, opts render.Options) {
	block := render.NewMessageBlockRenderer(width, opts).Render(msg)
	fmt.Fprintln(w, block.Rendered)
}
