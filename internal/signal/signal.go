// Package signal ties command lifetimes to process signals.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Shutdown lists the signals that end a command.
var Shutdown = []os.Signal{os.Interrupt, syscall.SIGTERM}

// NotifyContext returns a context cancelled on the first Shutdown signal.
// Call stop to restore default signal handling.
func NotifyContext() (ctx context.Context, stop context.CancelFunc) {
	return WithShutdown(context.Background())
}

// WithShutdown is NotifyContext derived from parent.
func WithShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, Shutdown...)
}
