package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/daemon"
	"github.com/hostyard/hostyard/internal/events"
	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/persistence"
	"github.com/hostyard/hostyard/internal/provisioner"
	"github.com/hostyard/hostyard/internal/types"
)

// HostService manages the lifecycle of container hosts: registration,
// guarded mutation, capacity fillup, bulk teardown and status upkeep.
type HostService struct {
	store       persistence.Store
	daemon      daemon.Client
	provisioner provisioner.Provisioner
	broadcaster events.BroadcasterInterface
	logger      *zap.Logger

	apiPortStart int
	fillStagger  time.Duration
	cleanStagger time.Duration
	consensus    []config.ConsensusPair
	sizes        []int
}

// HostServiceConfig carries the tunables the service needs from the
// application config.
type HostServiceConfig struct {
	APIPortStart int
	FillStagger  time.Duration
	CleanStagger time.Duration
	Consensus    []config.ConsensusPair
	Sizes        []int
}

// NewHostService creates a new host lifecycle service
func NewHostService(
	store persistence.Store,
	daemonClient daemon.Client,
	prov provisioner.Provisioner,
	broadcaster events.BroadcasterInterface,
	cfg HostServiceConfig,
	logger *zap.Logger,
) *HostService {
	consensus := cfg.Consensus
	if len(consensus) == 0 {
		consensus = []config.ConsensusPair{{Plugin: "noops", Mode: "batch"}}
	}
	sizes := cfg.Sizes
	if len(sizes) == 0 {
		sizes = []int{4}
	}

	return &HostService{
		store:        store,
		daemon:       daemonClient,
		provisioner:  prov,
		broadcaster:  broadcaster,
		logger:       logger.Named("host-service"),
		apiPortStart: cfg.APIPortStart,
		fillStagger:  cfg.FillStagger,
		cleanStagger: cfg.CleanStagger,
		consensus:    consensus,
		sizes:        sizes,
	}
}

// getHost loads a host by ID, mapping a store miss to ErrHostNotFound.
func (s *HostService) getHost(ctx context.Context, hostID types.HostID) (*models.Host, error) {
	host, err := s.store.FindOne(ctx, models.ByID(hostID))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrHostNotFound
		}
		return nil, fmt.Errorf("failed to load host: %v", err)
	}
	return host, nil
}

// requireActiveHost loads a host and enforces the active gate shared by
// fillup, clean and reset. A missing host and an inactive host report
// distinct errors so callers can tell the cases apart.
func (s *HostService) requireActiveHost(ctx context.Context, hostID types.HostID) (*models.Host, error) {
	host, err := s.getHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if !host.IsActive() {
		s.logger.Warn("Host is not active, refusing operation",
			hostID.ZapField(),
			zap.String("status", string(host.Status)))
		return nil, ErrHostInactive
	}
	return host, nil
}

// emit publishes a lifecycle event. Delivery problems are logged and
// swallowed so event plumbing never fails an operation.
func (s *HostService) emit(ctx context.Context, eventType events.EventType, hostID types.HostID, detail map[string]string) {
	if s.broadcaster == nil {
		return
	}
	event := events.Event{
		Type:   eventType,
		HostID: hostID,
		Detail: detail,
	}
	if err := s.broadcaster.BroadcastEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to broadcast host event",
			zap.String("type", string(eventType)),
			hostID.ZapField(),
			zap.Error(err))
	}
}

// pickConsensus draws a random consensus pairing from the configured catalog.
func (s *HostService) pickConsensus() config.ConsensusPair {
	return s.consensus[rand.Intn(len(s.consensus))]
}

// pickSize draws a random cluster size from the configured catalog.
func (s *HostService) pickSize() int {
	return s.sizes[rand.Intn(len(s.sizes))]
}

// normalizeDaemonURL prepends the tcp scheme to bare host:port endpoints.
// URLs that already carry a scheme pass through unchanged.
func normalizeDaemonURL(daemonURL string) string {
	daemonURL = strings.TrimSpace(daemonURL)
	if daemonURL == "" {
		return daemonURL
	}
	if !strings.Contains(daemonURL, "://") {
		return "tcp://" + daemonURL
	}
	return daemonURL
}

// normalizeLogServer prepends the udp scheme to bare log collector
// endpoints. Local log routing carries no server at all.
func normalizeLogServer(logType, logServer string) string {
	if logType == models.LogTypeLocal {
		return ""
	}
	logServer = strings.TrimSpace(logServer)
	if logServer == "" {
		return logServer
	}
	if !strings.Contains(logServer, "://") {
		return "udp://" + logServer
	}
	return logServer
}
