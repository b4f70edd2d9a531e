package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/samsaffron/wazuh-chat/internal/backend"
	"github.com/samsaffron/wazuh-chat/internal/config"
	render "github.com/samsaffron/wazuh-chat/internal/render/chat"
	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

type fakeSender struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []string
}

func (f *fakeSender) Send(ctx context.Context, sessionID, message string) (*backend.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, message)
	if f.err != nil {
		return nil, f.err
	}
	return &backend.ChatResponse{SessionID: sessionID, Message: f.reply, ToolCallsMade: 1}, nil
}

func newTestStore(t *testing.T) *session.SQLiteStore {
	t.Helper()
	store, err := session.NewSQLiteStore(config.SessionsConfig{
		Enabled:     true,
		Path:        filepath.Join(t.TempDir(), "sessions.db"),
		MaxMessages: 50,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestModel(t *testing.T, store session.Store, sender Sender, sess *session.Session) *Model {
	t.Helper()
	m := New(Options{
		Store:   store,
		Backend: sender,
		Session: sess,
		Render:  render.Options{Plain: true},
		Styles:  ui.NewStylesWithTheme(os.Stdout, ui.DefaultTheme()),
	})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return m
}

// collect runs cmd and any batched commands it expands to.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// deliver feeds the replies produced by cmd back into the model.
func deliver(m *Model, cmd tea.Cmd) {
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case replyMsg, historyLoadedMsg:
			m.Update(msg)
		}
	}
}

func submit(m *Model, text string) tea.Cmd {
	m.textarea.SetValue(text)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func screen(m *Model) string {
	return ansi.Strip(m.View())
}

func TestSendStoresExchange(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{reply: "There are **3** critical alerts."}
	m := newTestModel(t, store, sender, nil)

	cmd := submit(m, "show critical alerts")
	if !m.waiting {
		t.Fatal("model should be waiting for the reply")
	}
	if m.textarea.Value() != "" {
		t.Errorf("input not cleared: %q", m.textarea.Value())
	}
	deliver(m, cmd)

	if m.waiting {
		t.Error("model still waiting after the reply")
	}
	if len(m.messages) != 2 || m.messages[1].Content != sender.reply {
		t.Fatalf("messages = %+v", m.messages)
	}
	if !strings.Contains(screen(m), "There are 3 critical alerts.") {
		t.Errorf("reply not on screen:\n%s", screen(m))
	}

	ctx := context.Background()
	stored, err := store.Context(ctx, m.sess.ID)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if len(stored) != 2 || stored[0].Role != session.RoleUser || stored[1].ToolCallsMade != 1 {
		t.Errorf("stored = %+v", stored)
	}

	sess, err := store.Get(ctx, m.sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Title != "show critical alerts" || sess.Number != 1 {
		t.Errorf("session = %+v", sess)
	}
	if cur, _ := store.GetCurrent(ctx); cur == nil || cur.ID != sess.ID {
		t.Errorf("current session = %+v, want %s", cur, sess.ID)
	}
}

func TestBackendFailureShowsGenericError(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{err: fmt.Errorf("%w: connection refused", backend.ErrUnavailable)}
	m := newTestModel(t, store, sender, nil)

	deliver(m, submit(m, "any agents offline?"))

	last := m.messages[len(m.messages)-1]
	if last.Role != session.RoleAssistant || last.Content != backend.UserFacingError {
		t.Errorf("last message = %+v", last)
	}
	if strings.Contains(screen(m), "connection refused") {
		t.Error("transport details leaked to the screen")
	}

	ctx := context.Background()
	stored, _ := store.Context(ctx, m.sess.ID)
	if len(stored) != 1 {
		t.Errorf("only the user message should be stored, got %d", len(stored))
	}
	sess, _ := store.Get(ctx, m.sess.ID)
	if sess.Status != session.StatusError {
		t.Errorf("status = %q, want %q", sess.Status, session.StatusError)
	}
}

func TestCancelIgnoresLateReply(t *testing.T) {
	store := newTestStore(t)
	m := newTestModel(t, store, &fakeSender{reply: "late"}, nil)

	cmd := submit(m, "slow question")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.waiting || m.quitting {
		t.Fatalf("esc should cancel the request, waiting=%v quitting=%v", m.waiting, m.quitting)
	}
	if !strings.Contains(screen(m), "Request canceled.") {
		t.Errorf("missing cancel notice:\n%s", screen(m))
	}

	deliver(m, cmd)
	if len(m.messages) != 1 {
		t.Errorf("late reply should not be shown, messages = %d", len(m.messages))
	}
	stored, _ := store.Context(context.Background(), m.sess.ID)
	if len(stored) != 2 {
		t.Errorf("late reply should still be saved, stored = %d", len(stored))
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !m.quitting {
		t.Error("esc while idle should quit")
	}
}

func TestSlashCommands(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{reply: "ok"}
	m := newTestModel(t, store, sender, nil)
	deliver(m, submit(m, "first conversation"))
	first := m.sess.ID

	submit(m, "/new")
	if m.sess != nil || len(m.messages) != 0 {
		t.Fatal("/new should start an empty conversation")
	}
	deliver(m, submit(m, "second conversation"))
	if m.sess.ID == first || m.sess.Number != 2 {
		t.Fatalf("expected a second session, got %+v", m.sess)
	}

	submit(m, "/sessions")
	out := screen(m)
	for _, want := range []string{"Today", "#1", "first conversation", "#2", "second conversation"} {
		if !strings.Contains(out, want) {
			t.Errorf("/sessions output missing %q:\n%s", want, out)
		}
	}

	submit(m, "/sessions second")
	if out := screen(m); strings.Contains(out, "first conversation") {
		t.Errorf("/sessions filter should hide other titles:\n%s", out)
	}

	submit(m, "/switch 1")
	if m.sess.ID != first || len(m.messages) != 2 {
		t.Fatalf("/switch 1 loaded %+v with %d messages", m.sess, len(m.messages))
	}
	if !strings.Contains(screen(m), "Switched to #1 first conversation.") {
		t.Errorf("missing switch notice:\n%s", screen(m))
	}

	submit(m, "/switch 99")
	if !strings.Contains(screen(m), `No conversation "99".`) {
		t.Errorf("missing not-found notice:\n%s", screen(m))
	}

	submit(m, "/clear")
	if len(m.messages) != 0 || m.sess.ID != first {
		t.Error("/clear should empty the screen and keep the session")
	}

	submit(m, "/bogus")
	if !strings.Contains(screen(m), "Unknown command: /bogus") {
		t.Errorf("missing unknown command notice:\n%s", screen(m))
	}

	submit(m, "/s")
	if !strings.Contains(screen(m), "Did you mean: /sessions, /switch?") {
		t.Errorf("missing ambiguity notice:\n%s", screen(m))
	}

	if len(sender.calls) != 2 {
		t.Errorf("commands must not reach the backend, calls = %v", sender.calls)
	}
}

func TestResumeLoadsHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := &session.Session{}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatal(err)
	}
	for _, msg := range []*session.Message{
		session.NewMessage(sess.ID, session.RoleUser, "list agents"),
		session.NewMessage(sess.ID, session.RoleAssistant, "Two agents are active."),
	} {
		if err := store.AddMessage(ctx, sess.ID, msg); err != nil {
			t.Fatal(err)
		}
	}

	m := newTestModel(t, store, &fakeSender{}, sess)
	deliver(m, m.Init())

	if len(m.messages) != 2 {
		t.Fatalf("loaded %d messages, want 2", len(m.messages))
	}
	if !strings.Contains(screen(m), "Two agents are active.") {
		t.Errorf("history not on screen:\n%s", screen(m))
	}
}

func TestCompletionsTabFillsCommand(t *testing.T) {
	m := newTestModel(t, &session.NoopStore{}, &fakeSender{}, nil)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/sw")})
	if !m.completions.IsVisible() {
		t.Fatal("completions should open for a slash command")
	}
	if sel := m.completions.Selected(); sel == nil || sel.Submit != "/switch" {
		t.Fatalf("selected = %+v, want switch", sel)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := m.textarea.Value(); got != "/switch " {
		t.Errorf("input = %q, want %q", got, "/switch ")
	}
	if m.completions.IsVisible() {
		t.Error("no saved conversations, so nothing should be offered after tab")
	}
}

func TestCompletionsOfferSwitchTargets(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, title := range []string{"ssh brute force on web-01", "agent inventory", "rootcheck findings"} {
		if err := store.Create(ctx, &session.Session{Title: title}); err != nil {
			t.Fatal(err)
		}
	}
	m := newTestModel(t, store, &fakeSender{}, nil)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/switch ")})
	if !m.completions.IsVisible() || len(m.completions.items) != 3 {
		t.Fatalf("expected all conversations offered, got %+v", m.completions.items)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("invent")})
	sel := m.completions.Selected()
	if sel == nil || sel.Label != "#2" || sel.Description != "agent inventory" {
		t.Fatalf("selected = %+v, want #2 agent inventory", sel)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.sess == nil || m.sess.Number != 2 {
		t.Fatalf("enter should switch to #2, got %+v", m.sess)
	}
	if m.completions.IsVisible() {
		t.Error("popup should close after switching")
	}
}

func TestSessionItems(t *testing.T) {
	list := []session.Session{
		{Number: 12, Title: "ssh"},
		{Number: 3, Title: ""},
		{Number: 1, Title: "fim changes"},
	}
	labels := func(items []completionItem) string {
		var out []string
		for _, it := range items {
			out = append(out, it.Label+" "+it.Description)
		}
		return strings.Join(out, "|")
	}
	if got := labels(sessionItems(list, "#1")); got != "#1 fim changes|#12 ssh" {
		t.Errorf("number prefix = %q", got)
	}
	if got := labels(sessionItems(list, "")); got != "#12 ssh|#3 New Chat|#1 fim changes" {
		t.Errorf("empty query = %q", got)
	}
	if got := labels(sessionItems(list, "fch")); got != "#1 fim changes" {
		t.Errorf("fuzzy title = %q", got)
	}
	if items := sessionItems(list, "7"); len(items) != 0 {
		t.Errorf("no match = %+v", items)
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &session.NoopStore{}, &fakeSender{}, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.quitting || cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestCopyLastReply(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{reply: "Agent **web-01** is active."}
	m := newTestModel(t, store, sender, nil)

	var copied []string
	m.copy = func(text string) error {
		copied = append(copied, text)
		return nil
	}

	submit(m, "/copy")
	if !strings.Contains(screen(m), "Nothing to copy yet.") || len(copied) != 0 {
		t.Fatalf("/copy before any reply copied %v", copied)
	}

	deliver(m, submit(m, "is web-01 up?"))
	submit(m, "/copy")
	if len(copied) != 1 || copied[0] != sender.reply {
		t.Fatalf("copied = %q, want %q", copied, sender.reply)
	}
	if !strings.Contains(screen(m), "Copied the last reply") {
		t.Errorf("missing copy notice:\n%s", screen(m))
	}

	m.copy = func(string) error { return fmt.Errorf("no clipboard utility found") }
	submit(m, "/copy")
	if !strings.Contains(screen(m), "Could not copy: no clipboard utility found") {
		t.Errorf("missing copy failure notice:\n%s", screen(m))
	}

	copied = nil
	m.copy = func(text string) error {
		copied = append(copied, text)
		return nil
	}
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	if len(copied) != 1 {
		t.Errorf("ctrl+y copied %q, want the last reply", copied)
	}
}
