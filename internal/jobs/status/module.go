package status

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/service"
)

// ManagerParams contains the dependencies for the status sweep manager
type ManagerParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      *config.Config
	HostService *service.HostService
	Logger      *zap.Logger
}

// ProvideManager registers the status sweep with the fx lifecycle. An
// interval of zero leaves the sweep off.
func ProvideManager(p ManagerParams) {
	logger := p.Logger.Named("status-manager")

	if p.Config.Jobs.StatusInterval <= 0 {
		logger.Info("Status sweep disabled")
		return
	}

	var manager *Manager
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			manager = NewManager(p.HostService, p.Config.Jobs.StatusInterval, logger)
			manager.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if manager != nil {
				manager.Stop()
			}
			return nil
		},
	})
}

// Module provides the status sweep to the fx container
var Module = fx.Options(
	fx.Invoke(ProvideManager),
)
