package serve

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/ansi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/samsaffron/wazuh-chat/internal/backend"
	"github.com/samsaffron/wazuh-chat/internal/components"
	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/logging"
	"github.com/samsaffron/wazuh-chat/internal/markdown"
	"github.com/samsaffron/wazuh-chat/internal/reply"
	"github.com/samsaffron/wazuh-chat/internal/session"
)

// componentWidth keeps tables and charts readable on a phone.
const componentWidth = 48

const telegramHelp = "Ask me about alerts, agents and vulnerabilities in your Wazuh deployment.\n\n" +
	"Commands:\n" +
	"/reset  - Start a new conversation\n" +
	"/status - Show session info"

// botSender is the subset of tgbotapi.BotAPI used by handleMessage,
// allowing tests to supply a fake without a live connection.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPlatform implements Platform for the Telegram messaging platform.
type TelegramPlatform struct {
	cfg        config.TelegramConfig
	configPath string
}

// NewTelegramPlatform creates a new TelegramPlatform. configPath is where
// RunSetup saves the collected settings.
func NewTelegramPlatform(cfg config.TelegramConfig, configPath string) *TelegramPlatform {
	return &TelegramPlatform{cfg: cfg, configPath: configPath}
}

func (p *TelegramPlatform) Name() string { return "telegram" }

// NeedsSetup returns true when the bot token is missing.
func (p *TelegramPlatform) NeedsSetup() bool {
	return strings.TrimSpace(p.cfg.Token) == ""
}

// RunSetup asks for the bot token and allow-list and writes them to the
// config file.
func (p *TelegramPlatform) RunSetup() error {
	token := p.cfg.Token
	users := strings.Join(p.cfg.AllowedUsers, ", ")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot token").
				Description("Open @BotFather on Telegram, run /newbot and paste the token").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Allowed users").
				Description("Comma-separated numeric ids or @usernames; empty allows everyone").
				Value(&users).
				Validate(func(s string) error {
					_, _, err := parseAllowList(strings.Split(s, ","))
					return err
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if err := config.Set(p.configPath, "telegram.token", token); err != nil {
		return fmt.Errorf("save telegram token: %w", err)
	}
	if err := config.Set(p.configPath, "telegram.allowed_users", users); err != nil {
		return fmt.Errorf("save allowed users: %w", err)
	}

	p.cfg.Token = token
	p.cfg.AllowedUsers = nil
	for _, u := range strings.Split(users, ",") {
		if u = strings.TrimSpace(u); u != "" {
			p.cfg.AllowedUsers = append(p.cfg.AllowedUsers, u)
		}
	}
	fmt.Println("Telegram configuration saved to", p.configPath)
	return nil
}

// Run starts the Telegram bot loop, blocking until ctx is cancelled.
func (p *TelegramPlatform) Run(ctx context.Context, settings Settings) error {
	token := strings.TrimSpace(p.cfg.Token)
	if token == "" {
		return fmt.Errorf("telegram bot token is not configured; run with --setup to configure")
	}
	r, err := newRelay(p.cfg, settings)
	if err != nil {
		return err
	}
	if len(r.allowedIDs) == 0 && len(r.allowedNames) == 0 {
		r.logger.Warn("no telegram allowed_users configured; anyone can use the bot")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	r.logger.Info("telegram bot authorised", zap.String("username", bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer wg.Done()
				r.handleMessage(ctx, bot, msg)
			}(update.Message)
		}
	}
}

// parseAllowList splits entries into numeric user ids and lower-cased
// usernames. A leading @ is optional for usernames.
func parseAllowList(entries []string) (map[int64]struct{}, map[string]struct{}, error) {
	ids := make(map[int64]struct{})
	names := make(map[string]struct{})
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if id, err := strconv.ParseInt(e, 10, 64); err == nil {
			ids[id] = struct{}{}
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(e, "@"))
		if name == "" || strings.ContainsAny(name, " @") {
			return nil, nil, fmt.Errorf("invalid entry %q: must be a numeric ID or @username", e)
		}
		names[name] = struct{}{}
	}
	return ids, names, nil
}

// chatState is the conversation bound to one Telegram chat.
type chatState struct {
	mu           sync.Mutex // serialises exchanges within the chat
	sessionID    string
	lastActivity time.Time
}

// relay forwards Telegram messages to the assistant backend.
type relay struct {
	mu           sync.Mutex
	chats        map[int64]*chatState
	backend      Sender
	store        session.Store
	pipeline     *reply.Pipeline
	logger       *zap.Logger
	idleTimeout  time.Duration
	allowedIDs   map[int64]struct{}
	allowedNames map[string]struct{}
	now          func() time.Time
}

func newRelay(cfg config.TelegramConfig, settings Settings) (*relay, error) {
	if settings.Backend == nil {
		return nil, errors.New("telegram relay needs a backend")
	}
	ids, names, err := parseAllowList(cfg.AllowedUsers)
	if err != nil {
		return nil, fmt.Errorf("telegram.allowed_users: %w", err)
	}
	idle := settings.IdleTimeout
	if idle <= 0 {
		idle = cfg.IdleTimeout
	}
	pipeline := settings.Pipeline
	if pipeline == nil {
		pipeline = reply.Default()
	}
	store := settings.Store
	if store == nil {
		store = &session.NoopStore{}
	}
	return &relay{
		chats:        make(map[int64]*chatState),
		backend:      settings.Backend,
		store:        store,
		pipeline:     pipeline,
		logger:       logging.Or(settings.Logger).Named("telegram"),
		idleTimeout:  idle,
		allowedIDs:   ids,
		allowedNames: names,
		now:          time.Now,
	}, nil
}

// isAllowed reports whether the sender may use the bot. An empty
// allow-list admits everyone.
func (r *relay) isAllowed(userID int64, username string) bool {
	if len(r.allowedIDs) == 0 && len(r.allowedNames) == 0 {
		return true
	}
	if _, ok := r.allowedIDs[userID]; ok {
		return true
	}
	if username != "" {
		_, ok := r.allowedNames[strings.ToLower(username)]
		return ok
	}
	return false
}

// chatSessionID is the backend session of a chat's first conversation.
func chatSessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

func (r *relay) chat(chatID int64) *chatState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.chats[chatID]
	if !ok {
		st = &chatState{sessionID: chatSessionID(chatID), lastActivity: r.now()}
		r.chats[chatID] = st
	}
	return st
}

// rotate moves the chat to a new backend session. Called with st.mu held.
func (r *relay) rotate(chatID int64, st *chatState) {
	st.sessionID = fmt.Sprintf("%s-%d", chatSessionID(chatID), r.now().UnixNano())
	st.lastActivity = r.now()
}

func (r *relay) handleMessage(ctx context.Context, bot botSender, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !r.isAllowed(msg.From.ID, msg.From.UserName) {
		r.logger.Info("ignoring message from unauthorised user",
			zap.Int64("user_id", msg.From.ID), zap.String("username", msg.From.UserName))
		return
	}

	chatID := msg.Chat.ID
	st := r.chat(chatID)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			r.sendPlain(bot, chatID, telegramHelp)
			return
		case "reset":
			st.mu.Lock()
			r.rotate(chatID, st)
			st.mu.Unlock()
			r.sendPlain(bot, chatID, "Started a new conversation.")
			return
		case "status":
			st.mu.Lock()
			sid, last := st.sessionID, st.lastActivity
			st.mu.Unlock()
			count := 0
			if sess, err := r.store.Get(ctx, sid); err == nil {
				count = sess.MessageCount
			}
			r.sendPlain(bot, chatID, fmt.Sprintf("Session: %s\nMessages: %d\nLast activity: %s",
				sid, count, last.Format(time.RFC3339)))
			return
		}
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if r.idleTimeout > 0 && r.now().Sub(st.lastActivity) > r.idleTimeout {
		r.rotate(chatID, st)
		r.sendPlain(bot, chatID, "(Session reset due to inactivity)")
	}
	st.lastActivity = r.now()
	sid := st.sessionID

	r.saveUserMessage(ctx, sid, text)
	_, _ = bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	start := r.now()
	resp, err := r.backend.Send(ctx, sid, text)
	if err != nil {
		r.logger.Error("chat request failed",
			zap.Int64("chat_id", chatID), zap.String("session", sid), zap.Error(err))
		r.setStatus(ctx, sid, session.StatusError)
		r.sendPlain(bot, chatID, backend.UserFacingError)
		return
	}
	r.logger.Debug("reply received",
		zap.String("session", sid),
		zap.Duration("elapsed", r.now().Sub(start)),
		zap.Int("tool_calls", resp.ToolCallsMade))

	if err := r.store.AddMessage(ctx, sid, resp.ToMessage(sid)); err != nil {
		r.logger.Warn("failed to save reply", zap.String("session", sid), zap.Error(err))
	}
	r.setStatus(ctx, sid, session.StatusActive)

	for _, chunk := range FormatReply(r.pipeline, resp) {
		out := tgbotapi.NewMessage(chatID, chunk)
		out.ParseMode = tgbotapi.ModeHTML
		out.DisableWebPagePreview = true
		if _, err := bot.Send(out); err != nil {
			r.logger.Warn("failed to send reply chunk", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
	}
}

func (r *relay) sendPlain(bot botSender, chatID int64, text string) {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// saveUserMessage records the user's turn, creating the local session on
// first use.
func (r *relay) saveUserMessage(ctx context.Context, sid, text string) {
	if _, err := r.store.Get(ctx, sid); errors.Is(err, session.ErrNotFound) {
		if err := r.store.Create(ctx, &session.Session{ID: sid}); err != nil {
			r.logger.Warn("failed to create session", zap.String("session", sid), zap.Error(err))
		}
	}
	if err := r.store.AddMessage(ctx, sid, session.NewMessage(sid, session.RoleUser, text)); err != nil {
		r.logger.Warn("failed to save message", zap.String("session", sid), zap.Error(err))
	}
}

func (r *relay) setStatus(ctx context.Context, sid string, status session.SessionStatus) {
	sess, err := r.store.Get(ctx, sid)
	if err != nil || sess.Status == status {
		return
	}
	sess.Status = status
	if err := r.store.Update(ctx, sess); err != nil {
		r.logger.Warn("failed to update session", zap.String("session", sid), zap.Error(err))
	}
}

// FormatReply turns a backend reply into Telegram HTML messages. Rich
// components follow the text as preformatted blocks.
func FormatReply(p *reply.Pipeline, resp *backend.ChatResponse) []string {
	blocks := p.Process(resp.Message).Blocks
	if rendered := components.RenderAll(resp.Components, resp.Message, componentWidth); rendered != "" {
		blocks = append(blocks, markdown.CodeBlock{Lines: strings.Split(ansi.Strip(rendered), "\n")})
	}
	if len(blocks) == 0 {
		return []string{"(no response)"}
	}
	return TelegramChunks(blocks, telegramMaxMessageLen)
}
