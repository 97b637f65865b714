package events

import (
	"github.com/hostyard/hostyard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideBroadcaster creates an event broadcaster with the given dependencies
func ProvideBroadcaster(cfg *config.Config, logger *zap.Logger) BroadcasterInterface {
	return NewBroadcaster(cfg, logger)
}

// Module provides the event broadcaster dependency to the fx container
var Module = fx.Options(
	fx.Provide(ProvideBroadcaster),
)
