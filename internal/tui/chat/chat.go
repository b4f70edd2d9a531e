// Package chat is the interactive terminal chat with the assistant.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/samsaffron/wazuh-chat/internal/backend"
	"github.com/samsaffron/wazuh-chat/internal/clipboard"
	"github.com/samsaffron/wazuh-chat/internal/logging"
	render "github.com/samsaffron/wazuh-chat/internal/render/chat"
	"github.com/samsaffron/wazuh-chat/internal/reply"
	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

const (
	inputHeight      = 3
	historyCacheSize = 200
)

// Sender delivers a message to the assistant. *backend.Client implements it.
type Sender interface {
	Send(ctx context.Context, sessionID, message string) (*backend.ChatResponse, error)
}

// Options configures a chat Model.
type Options struct {
	Store   session.Store // required; use session.NoopStore to keep nothing
	Backend Sender
	Session *session.Session // resume this session; nil starts a new one on first send
	Render  render.Options
	Styles  *ui.Styles
	Logger  *zap.Logger
	Copy    func(text string) error // nil uses the system clipboard
}

// Model is the main chat TUI model
type Model struct {
	// Dimensions
	width  int
	height int
	ready  bool

	// Components
	viewport    viewport.Model
	textarea    textarea.Model
	spinner     spinner.Model
	styles      *ui.Styles
	keyMap      KeyMap
	completions *CompletionsModel
	history     *render.History

	switchTargets []session.Session // loaded once per /switch completion

	// Collaborators
	store    session.Store
	backend  Sender
	logger   *zap.Logger
	pipeline *reply.Pipeline
	copy     func(string) error

	// Session state
	sess     *session.Session  // nil until the first message of a new chat
	messages []session.Message // shown on screen, oldest first
	notice   string            // command output below the conversation; never saved

	// Request state
	waiting  bool
	reqID    int // identifies the in-flight request; replies for older ids are stale
	sentAt   time.Time
	cancel   context.CancelFunc
	quitting bool
}

// Messages for tea.Program
type (
	replyMsg struct {
		id        int
		sessionID string
		resp      *backend.ChatResponse
		err       error
	}
	historyLoadedMsg struct {
		messages []session.Message
		err      error
	}
)

// New creates a new chat model
func New(opts Options) *Model {
	styles := opts.Styles
	if styles == nil {
		styles = ui.DefaultStyles()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about alerts, agents or vulnerabilities... (/help for commands)"
	ta.Prompt = "❯ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("ctrl+j", "alt+enter")
	ta.Focus()

	pipeline := opts.Render.Pipeline
	if pipeline == nil {
		pipeline = reply.Default()
	}
	copyFn := opts.Copy
	if copyFn == nil {
		copyFn = clipboard.CopyText
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return &Model{
		textarea:    ta,
		spinner:     sp,
		styles:      styles,
		keyMap:      DefaultKeyMap(),
		completions: NewCompletionsModel(styles),
		history:     render.NewHistory(80, historyCacheSize, opts.Render),
		store:       opts.Store,
		backend:     opts.Backend,
		logger:      logging.Or(opts.Logger),
		pipeline:    pipeline,
		copy:        copyFn,
		sess:        opts.Session,
	}
}

// Session returns the active session, or nil before the first message.
func (m *Model) Session() *session.Session {
	return m.sess
}

// Init loads the history of a resumed session.
func (m *Model) Init() tea.Cmd {
	if m.sess == nil {
		return textarea.Blink
	}
	return tea.Batch(textarea.Blink, m.loadHistory(m.sess.ID))
}

func (m *Model) loadHistory(sessionID string) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		messages, err := store.Context(context.Background(), sessionID)
		return historyLoadedMsg{messages: messages, err: err}
	}
}

// Update handles bubbletea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(msg.Width)
		m.history.SetWidth(msg.Width)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.viewportHeight())
			m.ready = true
		}
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case replyMsg:
		return m.handleReply(msg)

	case historyLoadedMsg:
		if msg.err != nil {
			return m.showSystemMessage("Could not load conversation: " + msg.err.Error())
		}
		m.messages = msg.messages
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m.quit()

	case key.Matches(msg, m.keyMap.Cancel):
		switch {
		case m.completions.IsVisible():
			m.completions.Hide()
			m.layout()
			return m, nil
		case m.waiting:
			m.cancelRequest()
			return m.showSystemMessage("Request canceled.")
		}
		return m.quit()

	case key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keyMap.Clear):
		return m.cmdClear()

	case key.Matches(msg, m.keyMap.NewSession):
		return m.cmdNew()

	case key.Matches(msg, m.keyMap.CopyReply):
		return m.cmdCopy()

	case m.completions.IsVisible() && key.Matches(msg, key.NewBinding(key.WithKeys("up", "down", "ctrl+p"))):
		m.completions.Update(msg)
		return m, nil

	case key.Matches(msg, m.keyMap.Tab):
		if sel := m.completions.Selected(); sel != nil {
			m.textarea.SetValue(sel.Insert)
			m.textarea.CursorEnd()
			m.updateCompletions()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Send):
		input := m.textarea.Value()
		if sel := m.completions.Selected(); sel != nil {
			input = sel.Submit
		}
		m.completions.Hide()
		m.switchTargets = nil
		return m.submit(input)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.updateCompletions()
	return m, cmd
}

// updateCompletions shows command names while one is being typed and
// saved conversations while a /switch target is.
func (m *Model) updateCompletions() {
	value := m.textarea.Value()
	switch {
	case strings.HasPrefix(value, "/") && !strings.ContainsAny(value, " \n"):
		m.completions.SetItems(commandItems(FilterCommands(value)))
	case m.isSwitchTarget(value):
		if m.switchTargets == nil {
			list, err := m.store.List(context.Background(), session.ListOptions{Limit: 50})
			if err != nil {
				m.logger.Warn("failed to list sessions for completion", zap.Error(err))
			}
			m.switchTargets = append([]session.Session{}, list...)
		}
		_, arg, _ := strings.Cut(value, " ")
		m.completions.SetItems(sessionItems(m.switchTargets, arg))
	default:
		m.completions.Hide()
		m.switchTargets = nil
	}
	m.layout()
}

// isSwitchTarget reports whether value is "/switch " followed by at most
// a partial argument.
func (m *Model) isSwitchTarget(value string) bool {
	if strings.Contains(value, "\n") {
		return false
	}
	name, arg, ok := strings.Cut(strings.TrimPrefix(value, "/"), " ")
	if !ok || !strings.HasPrefix(value, "/") || strings.Contains(arg, " ") {
		return false
	}
	cmd, found := lookupCommand(AllCommands(), strings.ToLower(name))
	return found && cmd.Name == "switch"
}

// submit runs a slash command or sends text to the assistant.
func (m *Model) submit(input string) (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(input)
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.textarea.Reset()
		m.layout()
		return m.ExecuteCommand(text)
	}
	if m.waiting {
		return m, nil
	}
	m.textarea.Reset()
	m.layout()
	return m.sendMessage(text)
}

func (m *Model) sendMessage(text string) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	m.notice = ""
	m.ensureSession(ctx)

	msg := session.NewMessage(m.sess.ID, session.RoleUser, text)
	if err := m.store.AddMessage(ctx, m.sess.ID, msg); err != nil {
		m.logger.Warn("failed to save message", zap.String("session", m.sess.ID), zap.Error(err))
	}
	if m.sess.Title == "" {
		m.sess.Title = session.TitleFrom(text)
	}
	m.messages = append(m.messages, *msg)
	m.refresh()

	reqCtx, cancel := context.WithCancel(ctx)
	m.reqID++
	m.cancel = cancel
	m.waiting = true
	m.sentAt = time.Now()
	return m, tea.Batch(m.spinner.Tick, m.send(reqCtx, m.reqID, m.sess.ID, text))
}

// ensureSession creates the session on first use. A store failure leaves
// an unsaved session so the chat keeps working.
func (m *Model) ensureSession(ctx context.Context) {
	if m.sess != nil {
		return
	}
	now := time.Now()
	sess := &session.Session{
		ID:        session.NewID(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    session.StatusActive,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		m.logger.Warn("failed to create session", zap.Error(err))
	} else if err := m.store.SetCurrent(ctx, sess.ID); err != nil {
		m.logger.Warn("failed to set current session", zap.Error(err))
	}
	m.sess = sess
}

func (m *Model) send(ctx context.Context, id int, sessionID, text string) tea.Cmd {
	sender := m.backend
	return func() tea.Msg {
		resp, err := sender.Send(ctx, sessionID, text)
		return replyMsg{id: id, sessionID: sessionID, resp: resp, err: err}
	}
}

// handleReply shows and stores the assistant reply. A stale reply that
// completed despite being canceled is stored but not shown.
func (m *Model) handleReply(msg replyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	if msg.id != m.reqID || !m.waiting {
		if msg.err == nil {
			m.saveReply(ctx, msg.sessionID, msg.resp)
		}
		return m, nil
	}

	m.cancel()
	m.cancel = nil
	m.waiting = false

	if msg.err != nil {
		m.logger.Error("chat request failed",
			zap.String("session", msg.sessionID),
			zap.Duration("elapsed", time.Since(m.sentAt)),
			zap.Error(msg.err))
		m.messages = append(m.messages, session.Message{
			SessionID: msg.sessionID,
			Role:      session.RoleAssistant,
			Content:   backend.UserFacingError,
			CreatedAt: time.Now(),
		})
		m.setStatus(ctx, session.StatusError)
		m.refresh()
		return m, nil
	}

	m.logger.Debug("reply received",
		zap.String("session", msg.sessionID),
		zap.Duration("elapsed", time.Since(m.sentAt)),
		zap.Int("tool_calls", msg.resp.ToolCallsMade))
	m.messages = append(m.messages, *m.saveReply(ctx, msg.sessionID, msg.resp))
	if m.sess.Status == session.StatusError {
		m.setStatus(ctx, session.StatusActive)
	}
	m.refresh()
	return m, nil
}

func (m *Model) saveReply(ctx context.Context, sessionID string, resp *backend.ChatResponse) *session.Message {
	reply := resp.ToMessage(sessionID)
	if err := m.store.AddMessage(ctx, sessionID, reply); err != nil {
		m.logger.Warn("failed to save reply", zap.String("session", sessionID), zap.Error(err))
	}
	return reply
}

func (m *Model) setStatus(ctx context.Context, status session.SessionStatus) {
	m.sess.Status = status
	if err := m.store.Update(ctx, m.sess); err != nil && !errors.Is(err, session.ErrNotFound) {
		m.logger.Warn("failed to update session", zap.String("session", m.sess.ID), zap.Error(err))
	}
}

// cancelRequest aborts the in-flight request, if any. Its reply, should
// one still arrive, is treated as stale.
func (m *Model) cancelRequest() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.waiting = false
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.cancelRequest()
	m.quitting = true
	return m, tea.Quit
}
