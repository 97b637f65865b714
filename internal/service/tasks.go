package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hostyard/hostyard/internal/events"
	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/persistence"
	"github.com/hostyard/hostyard/internal/provisioner"
	"github.com/hostyard/hostyard/internal/types"
)

// Fillup provisions clusters until the host reaches its configured capacity.
// Ports are allocated up front, then one cluster launch is dispatched per
// port with a stagger in between; the launches themselves run detached and
// report failures through the log only.
func (s *HostService) Fillup(ctx context.Context, hostID types.HostID) error {
	host, err := s.requireActiveHost(ctx, hostID)
	if err != nil {
		return err
	}

	free := host.FreeSlots()
	if free <= 0 {
		s.logger.Info("Host already at capacity",
			hostID.ZapField(),
			zap.Int("capacity", host.Capacity),
			zap.Int("clusters", len(host.Clusters)))
		return nil
	}

	s.logger.Info("Filling host up to capacity",
		hostID.ZapField(),
		zap.String("name", host.Name),
		zap.Int("slots", free))

	ports, err := s.provisioner.AllocatePorts(ctx, hostID, free)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}

	for _, port := range ports {
		consensus := s.pickConsensus()
		req := provisioner.CreateRequest{
			HostID:          hostID,
			Name:            fmt.Sprintf("%s_%d", host.Name, port-s.apiPortStart),
			APIPort:         port,
			ConsensusPlugin: consensus.Plugin,
			ConsensusMode:   consensus.Mode,
			Size:            s.pickSize(),
		}
		go s.createClusterDetached(req)
		time.Sleep(s.fillStagger)
	}

	s.logger.Info("Fillup dispatched",
		hostID.ZapField(),
		zap.Int("launches", len(ports)))
	return nil
}

// Clean tears down every cluster on the host. The host is taken out of
// scheduling while the teardowns are dispatched and put back afterwards,
// without waiting for the teardowns themselves to finish.
func (s *HostService) Clean(ctx context.Context, hostID types.HostID) error {
	host, err := s.requireActiveHost(ctx, hostID)
	if err != nil {
		return err
	}
	if len(host.Clusters) == 0 {
		s.logger.Info("Host carries no clusters, nothing to clean", hostID.ZapField())
		return nil
	}

	s.logger.Info("Cleaning host",
		hostID.ZapField(),
		zap.String("name", host.Name),
		zap.Int("clusters", len(host.Clusters)))

	if _, err := s.store.FindOneAndUpdate(ctx, models.ByID(hostID), models.SetSchedulable(false), persistence.ReturnAfter); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrHostNotFound
		}
		return fmt.Errorf("failed to pause scheduling: %v", err)
	}

	for _, clusterID := range host.Clusters {
		go s.deleteClusterDetached(hostID, clusterID)
		time.Sleep(s.cleanStagger)
	}

	// Scheduling resumes as soon as the teardowns are on their way, not
	// when they land.
	if _, err := s.store.FindOneAndUpdate(ctx, models.ByID(hostID), models.SetSchedulable(true), persistence.ReturnAfter); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrHostNotFound
		}
		return fmt.Errorf("failed to resume scheduling: %v", err)
	}

	s.logger.Info("Clean dispatched",
		hostID.ZapField(),
		zap.Int("teardowns", len(host.Clusters)))
	s.emit(ctx, events.HostCleaned, hostID, map[string]string{
		"clusters": fmt.Sprintf("%d", len(host.Clusters)),
	})
	return nil
}

// Reset wipes managed state off the host's daemon. Only an active host with
// no clusters can be reset.
func (s *HostService) Reset(ctx context.Context, hostID types.HostID) error {
	host, err := s.requireActiveHost(ctx, hostID)
	if err != nil {
		return err
	}
	if len(host.Clusters) > 0 {
		s.logger.Warn("Refusing to reset host with clusters",
			hostID.ZapField(),
			zap.Int("clusters", len(host.Clusters)))
		return ErrClustersPresent
	}

	s.logger.Info("Resetting host daemon",
		hostID.ZapField(),
		zap.String("daemonURL", host.DaemonURL))
	if err := s.daemon.Reset(ctx, host.Type, host.DaemonURL); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonReset, err)
	}

	s.logger.Info("Host daemon reset", hostID.ZapField())
	return nil
}

// createClusterDetached runs one cluster launch on its own context so the
// dispatching request can return immediately.
func (s *HostService) createClusterDetached(req provisioner.CreateRequest) {
	clusterID, err := s.provisioner.CreateCluster(context.Background(), req)
	if err != nil {
		s.logger.Warn("Cluster launch failed",
			req.HostID.ZapField(),
			zap.String("cluster", req.Name),
			zap.Int("apiPort", req.APIPort),
			zap.Error(err))
		return
	}
	s.logger.Info("Cluster launched",
		req.HostID.ZapField(),
		clusterID.ZapField(),
		zap.String("cluster", req.Name))
}

// deleteClusterDetached runs one cluster teardown on its own context.
func (s *HostService) deleteClusterDetached(hostID types.HostID, clusterID types.ClusterID) {
	if err := s.provisioner.DeleteCluster(context.Background(), clusterID); err != nil {
		s.logger.Warn("Cluster teardown failed",
			hostID.ZapField(),
			clusterID.ZapField(),
			zap.Error(err))
		return
	}
	s.logger.Info("Cluster torn down", hostID.ZapField(), clusterID.ZapField())
}
