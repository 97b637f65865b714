package provisioner

import (
	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/persistence"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideProvisioner creates a cluster provisioner based on the configuration
func ProvideProvisioner(cfg *config.Config, store persistence.Store, logger *zap.Logger) Provisioner {
	if cfg.Clusters.Mock {
		return NewMockProvisioner(cfg, store, logger)
	}
	return NewHTTPProvisioner(cfg, logger)
}

// Module provides the provisioner dependency to the fx container
var Module = fx.Options(
	fx.Provide(ProvideProvisioner),
)
