// Package session persists conversations with the assistant.
package session

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samsaffron/wazuh-chat/internal/config"
)

// Store is the interface for session persistence.
type Store interface {
	// Session CRUD
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	GetByNumber(ctx context.Context, number int64) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error

	// Listing and search
	List(ctx context.Context, opts ListOptions) ([]Session, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// Messages
	AddMessage(ctx context.Context, sessionID string, msg *Message) error
	GetMessages(ctx context.Context, sessionID string, limit, offset int) ([]Message, error)
	// Context returns the retained tail of a session, oldest first.
	Context(ctx context.Context, sessionID string) ([]Message, error)

	// CleanupExpired removes sessions idle since before now minus the
	// configured timeout and reports how many were removed.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)

	// Current session tracking (for auto-resume)
	SetCurrent(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context) (*Session, error)
	ClearCurrent(ctx context.Context) error

	// Lifecycle
	Close() error
}

// DBPath returns the sessions database path, honouring the config override.
func DBPath(cfg config.SessionsConfig) (string, error) {
	if cfg.Path != "" {
		return cfg.Path, nil
	}
	dataDir, err := config.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "sessions.db"), nil
}

// NewStore creates a new Store based on the configuration.
// If sessions are disabled, returns a no-op store.
func NewStore(cfg config.SessionsConfig) (Store, error) {
	if !cfg.Enabled {
		return &NoopStore{}, nil
	}
	return NewSQLiteStore(cfg)
}

// Resolve finds a session by number ("3" or "#3"), full ID or unique ID
// prefix.
func Resolve(ctx context.Context, store Store, ref string) (*Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}
	if n, err := strconv.ParseInt(strings.TrimPrefix(ref, "#"), 10, 64); err == nil && n > 0 {
		sess, err := store.GetByNumber(ctx, n)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return sess, err
		}
	}
	sess, err := store.Get(ctx, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return sess, err
	}

	list, err := store.List(ctx, ListOptions{Limit: -1, Archived: true})
	if err != nil {
		return nil, err
	}
	var match *Session
	for i := range list {
		if strings.HasPrefix(list[i].ID, ref) {
			if match != nil {
				return nil, &AmbiguousError{Ref: ref}
			}
			match = &list[i]
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	return match, nil
}

// AmbiguousError is returned by Resolve when an ID prefix matches more
// than one session.
type AmbiguousError struct {
	Ref string
}

func (e *AmbiguousError) Error() string {
	return "session reference " + strconv.Quote(e.Ref) + " is ambiguous"
}
