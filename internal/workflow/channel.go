// File: internal/workflow/channel.go
package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/sshclient"
)

// CommandChannel is the remote execution surface the engine drives. A channel
// is opened fresh for each use and closed immediately afterwards; scoped
// acquisition keeps a faulted connection from leaking into later steps.
type CommandChannel interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, command string, timeout time.Duration) (string, error)
	Close() error
}

// ChannelFactory produces a fresh, unconnected channel per use.
type ChannelFactory func() CommandChannel

// SSHChannelFactory adapts the SSH client to the engine's channel contract.
func SSHChannelFactory(cfg config.SSHConfig, logger *zap.Logger) ChannelFactory {
	return func() CommandChannel {
		return sshclient.New(cfg, logger)
	}
}
