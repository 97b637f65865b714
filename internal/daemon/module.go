package daemon

import (
	"context"

	"github.com/hostyard/hostyard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideClient creates a daemon client based on the configuration
func ProvideClient(cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) Client {
	if cfg.Daemon.Mock {
		return NewMockClient(logger)
	}

	client := NewDockerClient(cfg, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

// Module provides the daemon client dependency to the fx container
var Module = fx.Options(
	fx.Provide(ProvideClient),
)
