// Package serve relays the assistant to messaging platforms.
package serve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/samsaffron/wazuh-chat/internal/backend"
	"github.com/samsaffron/wazuh-chat/internal/reply"
	"github.com/samsaffron/wazuh-chat/internal/session"
)

// Sender delivers a message to the assistant. *backend.Client implements it.
type Sender interface {
	Send(ctx context.Context, sessionID, message string) (*backend.ChatResponse, error)
}

// Settings holds the collaborators shared by every platform.
type Settings struct {
	Backend  Sender
	Store    session.Store // nil keeps no local history
	Pipeline *reply.Pipeline
	Logger   *zap.Logger
	// IdleTimeout starts a fresh conversation after this much inactivity.
	// Zero uses the platform's configured value.
	IdleTimeout time.Duration
}

// Platform is the interface implemented by each messaging platform adapter.
type Platform interface {
	// Name returns the platform identifier (e.g. "telegram").
	Name() string
	// NeedsSetup returns true when required configuration is missing.
	NeedsSetup() bool
	// RunSetup runs an interactive wizard to collect and persist configuration.
	RunSetup() error
	// Run starts the platform's message loop, blocking until ctx is cancelled.
	Run(ctx context.Context, settings Settings) error
}
