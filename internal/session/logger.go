package session

import (
	"context"
	"sync"
	"time"
)

// WarnFunc receives persistence warnings, such as zap's SugaredLogger.Warnf.
type WarnFunc func(format string, args ...any)

// LoggingStore reports the first failure of each write operation.
// Chat and the relay keep going when history cannot be saved, so without
// it a broken database would go unnoticed. Later failures of the same
// operation are only counted.
type LoggingStore struct {
	Store
	warn WarnFunc

	mu         sync.Mutex
	suppressed map[string]int
}

// NewLoggingStore wraps store. A nil warn disables reporting.
func NewLoggingStore(store Store, warn WarnFunc) *LoggingStore {
	return &LoggingStore{
		Store:      store,
		warn:       warn,
		suppressed: make(map[string]int),
	}
}

// report warns about err unless op already failed before.
func (s *LoggingStore) report(op, sessionID string, err error) error {
	if err == nil || s.warn == nil {
		return err
	}

	s.mu.Lock()
	n, seen := s.suppressed[op]
	s.suppressed[op] = n + 1
	s.mu.Unlock()

	if !seen {
		s.warn("session %s failed for %q (further failures not reported): %v", op, sessionID, err)
	}
	return err
}

// Suppressed returns how many failures of op went unreported.
func (s *LoggingStore) Suppressed(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(0, s.suppressed[op]-1)
}

func (s *LoggingStore) Create(ctx context.Context, sess *Session) error {
	return s.report("create", sess.ID, s.Store.Create(ctx, sess))
}

func (s *LoggingStore) Update(ctx context.Context, sess *Session) error {
	return s.report("update", sess.ID, s.Store.Update(ctx, sess))
}

func (s *LoggingStore) Delete(ctx context.Context, id string) error {
	return s.report("delete", id, s.Store.Delete(ctx, id))
}

func (s *LoggingStore) AddMessage(ctx context.Context, sessionID string, msg *Message) error {
	return s.report("add message", sessionID, s.Store.AddMessage(ctx, sessionID, msg))
}

func (s *LoggingStore) SetCurrent(ctx context.Context, sessionID string) error {
	return s.report("set current", sessionID, s.Store.SetCurrent(ctx, sessionID))
}

// CleanupExpired reports failures but is never fatal to the caller's flow.
func (s *LoggingStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.Store.CleanupExpired(ctx, now)
	return n, s.report("cleanup", "", err)
}
