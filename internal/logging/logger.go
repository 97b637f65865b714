package logging

import (
	"github.com/hostyard/hostyard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideLogger creates the service-wide zap logger. Production config by
// default; development config when HOSTYARD_LOGGING_DEV is set. Components
// derive their own named loggers from this one.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.Development {
		devCfg := zap.NewDevelopmentConfig()
		devCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return devCfg.Build()
	}
	return zap.NewProduction(zap.Fields(zap.String("service", "hostyard")))
}

// Module provides the logger dependency to the fx container
var Module = fx.Options(
	fx.Provide(ProvideLogger),
)
