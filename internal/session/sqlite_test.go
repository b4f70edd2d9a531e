package session

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsaffron/wazuh-chat/internal/components"
	"github.com/samsaffron/wazuh-chat/internal/config"
)

func newTestStore(t *testing.T, cfg config.SessionsConfig) *SQLiteStore {
	t.Helper()
	cfg.Enabled = true
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "sessions.db")
	}
	store, err := NewSQLiteStore(cfg)
	require.NoError(t, err, "failed to create sqlite store")
	t.Cleanup(func() { store.Close() })
	return store
}

func addExchange(t *testing.T, store Store, sessionID, question, answer string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.AddMessage(ctx, sessionID, NewMessage(sessionID, RoleUser, question)))
	require.NoError(t, store.AddMessage(ctx, sessionID, NewMessage(sessionID, RoleAssistant, answer)))
}

func TestSQLiteStoreSessionRoundTrip(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{})
	ctx := context.Background()

	first := &Session{}
	require.NoError(t, store.Create(ctx, first))
	second := &Session{Title: "Agent health"}
	require.NoError(t, store.Create(ctx, second))

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, int64(1), first.Number)
	assert.Equal(t, int64(2), second.Number)

	loaded, err := store.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Agent health", loaded.Title)
	assert.Equal(t, StatusActive, loaded.Status)
	assert.Equal(t, 0, loaded.MessageCount)

	byNumber, err := store.GetByNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byNumber.ID)
	assert.Equal(t, DefaultTitle, byNumber.DisplayTitle())

	loaded.Title = "Renamed"
	loaded.Archived = true
	require.NoError(t, store.Update(ctx, loaded))

	list, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1, "archived sessions are hidden by default")
	assert.Equal(t, first.ID, list[0].ID)

	list, err = store.List(ctx, ListOptions{Archived: true, Query: "renam"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Title)

	require.NoError(t, store.Delete(ctx, first.ID))
	_, err = store.Get(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, first.ID), ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, &Session{ID: "missing"}), ErrNotFound)
}

func TestSQLiteStoreMessages(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{})
	ctx := context.Background()

	sess := &Session{}
	require.NoError(t, store.Create(ctx, sess))

	user := NewMessage(sess.ID, RoleUser, "Show me the critical alerts from the last 24 hours please, grouped by agent")
	require.NoError(t, store.AddMessage(ctx, sess.ID, user))

	reply := NewMessage(sess.ID, RoleAssistant, "Here are **3** alerts.")
	reply.ToolCallsMade = 2
	reply.ProcessingMs = 1250
	reply.Components = []components.Component{{
		Type: components.TypeMetrics,
		Data: map[string]any{"metrics": map[string]any{"critical": 3.0}},
	}}
	require.NoError(t, store.AddMessage(ctx, sess.ID, reply))

	assert.Equal(t, 0, user.Sequence)
	assert.Equal(t, 1, reply.Sequence)
	assert.NotZero(t, reply.ID)

	msgs, err := store.GetMessages(ctx, sess.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, 2, msgs[1].ToolCallsMade)
	assert.Equal(t, int64(1250), msgs[1].ProcessingMs)
	require.Len(t, msgs[1].Components, 1)
	assert.Equal(t, components.TypeMetrics, msgs[1].Components[0].Type)
	assert.Nil(t, msgs[0].Components)

	loaded, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.MessageCount)
	assert.Equal(t, "Show me the critical alerts from the last 24 hours...", loaded.Title)

	err = store.AddMessage(ctx, "missing", NewMessage("missing", RoleUser, "hi"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreTrimsHistory(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{MaxMessages: 2})
	ctx := context.Background()

	sess := &Session{}
	require.NoError(t, store.Create(ctx, sess))
	for _, q := range []string{"one", "two", "three"} {
		addExchange(t, store, sess.ID, q, "re: "+q)
	}

	msgs, err := store.GetMessages(ctx, sess.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, 2, msgs[0].Sequence)
	assert.Equal(t, "re: three", msgs[3].Content)

	tail, err := store.Context(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, msgs, tail)

	// Title comes from the very first message even after it was trimmed.
	loaded, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", loaded.Title)
}

func TestSQLiteStoreContextUnlimited(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{})
	ctx := context.Background()

	sess := &Session{}
	require.NoError(t, store.Create(ctx, sess))
	for i := 0; i < 30; i++ {
		addExchange(t, store, sess.ID, "q", "a")
	}
	tail, err := store.Context(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, tail, 60)

	page, err := store.GetMessages(ctx, sess.ID, 5, 10)
	require.NoError(t, err)
	require.Len(t, page, 5)
	assert.Equal(t, 10, page[0].Sequence)
}

func TestSQLiteStoreCleanupExpired(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{TimeoutMinutes: 30})
	ctx := context.Background()
	now := time.Now()

	stale := &Session{CreatedAt: now.Add(-2 * time.Hour)}
	archived := &Session{CreatedAt: now.Add(-2 * time.Hour), Archived: true}
	fresh := &Session{CreatedAt: now.Add(-5 * time.Minute)}
	for _, s := range []*Session{stale, archived, fresh} {
		require.NoError(t, store.Create(ctx, s))
	}

	removed, err := store.CleanupExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, archived.ID)
	assert.NoError(t, err)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestSQLiteStoreCleanupDisabled(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{})
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Session{CreatedAt: time.Now().AddDate(-1, 0, 0)}))
	removed, err := store.CleanupExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSQLiteStoreCleanupMaxCount(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{MaxCount: 2})
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	var ids []string
	for i := 0; i < 4; i++ {
		s := &Session{CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, store.Create(ctx, s))
		ids = append(ids, s.ID)
	}

	removed, err := store.CleanupExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[3], list[0].ID)
	assert.Equal(t, ids[2], list[1].ID)
}

func TestSQLiteStoreSearch(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{})
	ctx := context.Background()

	a := &Session{}
	b := &Session{}
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))
	addExchange(t, store, a.ID, "Any brute force attempts on web-01?", "Yes, 14 SSH brute force attempts.")
	addExchange(t, store, b.ID, "List disconnected agents", "Two agents are disconnected.")

	results, err := store.Search(ctx, "brute force", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, a.ID, r.SessionID)
		assert.Equal(t, int64(1), r.SessionNumber)
		assert.Contains(t, r.Snippet, "**brute**")
	}

	results, err = store.Search(ctx, `agents" OR`, 0)
	require.NoError(t, err, "user input must not be parsed as FTS syntax")
	assert.Empty(t, results)

	results, err = store.Search(ctx, "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteStoreCurrent(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{})
	ctx := context.Background()

	cur, err := store.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	sess := &Session{}
	require.NoError(t, store.Create(ctx, sess))
	require.NoError(t, store.SetCurrent(ctx, sess.ID))

	cur, err = store.GetCurrent(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, sess.ID, cur.ID)

	require.NoError(t, store.Delete(ctx, sess.ID))
	cur, err = store.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur, "a deleted current session is not resumed")

	require.NoError(t, store.SetCurrent(ctx, "x"))
	require.NoError(t, store.ClearCurrent(ctx))
	cur, err = store.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestSQLiteStoreDefaultPath(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	store, err := NewSQLiteStore(config.SessionsConfig{Enabled: true})
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(dataHome, "wazuh-chat", "sessions.db"))
	assert.NoError(t, err)
}

func TestSQLiteStoreCustomPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "custom", "sessions.db")
	newTestStore(t, config.SessionsConfig{Path: dbPath})

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file at %q: %v", dbPath, err)
	}
}

func TestSQLiteStoreMigratesUnversionedDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions-v0.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	seedSQL := `
CREATE TABLE sessions (
    id TEXT PRIMARY KEY,
    title TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    archived BOOLEAN DEFAULT FALSE,
    status TEXT DEFAULT 'active'
);
CREATE TABLE messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    sequence INTEGER NOT NULL
);
INSERT INTO sessions (id, title, created_at, updated_at) VALUES
    ('bbb', 'second', '2025-01-02 10:00:00+00:00', '2025-01-02 10:00:00+00:00'),
    ('aaa', 'first', '2025-01-01 10:00:00+00:00', '2025-01-01 10:00:00+00:00');
INSERT INTO messages (session_id, role, content, sequence) VALUES ('aaa', 'user', 'hello', 0);
`
	_, err = db.Exec(seedSQL)
	require.NoError(t, err, "failed to seed unversioned schema")
	require.NoError(t, db.Close())

	store := newTestStore(t, config.SessionsConfig{Path: dbPath})
	ctx := context.Background()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT version FROM schema_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)

	first, err := store.Get(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Number)
	second, err := store.Get(ctx, "bbb")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Number)

	msgs, err := store.GetMessages(ctx, "aaa", 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Zero(t, msgs[0].ToolCallsMade)

	// New sessions continue the numbering.
	third := &Session{}
	require.NoError(t, store.Create(ctx, third))
	assert.Equal(t, int64(3), third.Number)

	// Reopening a current database is a no-op.
	require.NoError(t, store.Close())
	reopened := newTestStore(t, config.SessionsConfig{Path: dbPath})
	_, err = reopened.Get(ctx, third.ID)
	assert.NoError(t, err)
}

func TestResolve(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{})
	ctx := context.Background()

	a := &Session{ID: "abc-111"}
	b := &Session{ID: "abd-222"}
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))

	tests := []struct {
		ref    string
		wantID string
		err    error
	}{
		{ref: "1", wantID: "abc-111"},
		{ref: "#2", wantID: "abd-222"},
		{ref: "abd-222", wantID: "abd-222"},
		{ref: "abc", wantID: "abc-111"},
		{ref: "zzz", err: ErrNotFound},
		{ref: "9", err: ErrNotFound},
		{ref: "", err: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := Resolve(ctx, store, tt.ref)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}

	_, err := Resolve(ctx, store, "ab")
	var amb *AmbiguousError
	assert.True(t, errors.As(err, &amb), "got %v", err)
}

func TestNoopStore(t *testing.T) {
	store, err := NewStore(config.SessionsConfig{Enabled: false})
	require.NoError(t, err)
	ctx := context.Background()

	sess := &Session{}
	require.NoError(t, store.Create(ctx, sess))
	assert.NotEmpty(t, sess.ID)
	require.NoError(t, store.AddMessage(ctx, sess.ID, NewMessage(sess.ID, RoleUser, "hi")))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	msgs, err := store.Context(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLoggingStoreWarnsOnce(t *testing.T) {
	store := newTestStore(t, config.SessionsConfig{})
	var warnings []string
	logged := NewLoggingStore(store, func(format string, args ...any) {
		warnings = append(warnings, format)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := logged.AddMessage(ctx, "missing", NewMessage("missing", RoleUser, "hi"))
		assert.ErrorIs(t, err, ErrNotFound)
	}
	require.Len(t, warnings, 1)
	assert.True(t, strings.HasPrefix(warnings[0], "session %s failed for %q"))
	assert.Equal(t, 2, logged.Suppressed("add message"))
	assert.Equal(t, 0, logged.Suppressed("update"))

	// Other operations still report their first failure.
	assert.ErrorIs(t, logged.Delete(ctx, "missing"), ErrNotFound)
	assert.Len(t, warnings, 2)
}
