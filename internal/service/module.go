package service

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/daemon"
	"github.com/hostyard/hostyard/internal/events"
	"github.com/hostyard/hostyard/internal/persistence"
	"github.com/hostyard/hostyard/internal/provisioner"
)

// ProvideHostService creates a new host service for dependency injection
func ProvideHostService(
	cfg *config.Config,
	store persistence.Store,
	daemonClient daemon.Client,
	prov provisioner.Provisioner,
	broadcaster events.BroadcasterInterface,
	logger *zap.Logger,
) *HostService {
	return NewHostService(store, daemonClient, prov, broadcaster, HostServiceConfig{
		APIPortStart: cfg.Clusters.APIPortStart,
		FillStagger:  cfg.Clusters.FillStagger,
		CleanStagger: cfg.Clusters.CleanStagger,
		Consensus:    cfg.Clusters.ConsensusPairs(),
		Sizes:        cfg.Clusters.Sizes,
	}, logger)
}

// Module provides the host service to the fx dependency injection framework
var Module = fx.Options(
	fx.Provide(ProvideHostService),
)
