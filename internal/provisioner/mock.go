package provisioner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/persistence"
	"github.com/hostyard/hostyard/internal/types"
	"go.uber.org/zap"
)

// MockProvisioner simulates the cluster subsystem for mock mode and tests.
// It hands out sequential ports and performs the real provisioner's side
// effect of recording cluster placement on the host record.
type MockProvisioner struct {
	store    persistence.Store
	logger   *zap.Logger
	portBase int

	mu       sync.Mutex
	nextPort map[types.HostID]int
}

// Ensure MockProvisioner implements the Provisioner interface
var _ Provisioner = (*MockProvisioner)(nil)

// NewMockProvisioner creates a new mock provisioner
func NewMockProvisioner(cfg *config.Config, store persistence.Store, logger *zap.Logger) *MockProvisioner {
	return &MockProvisioner{
		store:    store,
		logger:   logger.Named("provisioner-mock"),
		portBase: cfg.Clusters.APIPortStart,
		nextPort: make(map[types.HostID]int),
	}
}

// AllocatePorts hands out the next free sequential ports for the host
func (m *MockProvisioner) AllocatePorts(ctx context.Context, hostID types.HostID, count int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := m.nextPort[hostID]
	if !ok {
		next = m.portBase
	}

	ports := make([]int, 0, count)
	for i := 0; i < count; i++ {
		ports = append(ports, next)
		next++
	}
	m.nextPort[hostID] = next
	return ports, nil
}

// CreateCluster fabricates a cluster ID and records it on the host
func (m *MockProvisioner) CreateCluster(ctx context.Context, req CreateRequest) (types.ClusterID, error) {
	id := types.GenerateClusterID()

	_, err := m.store.FindOneAndUpdate(ctx, models.ByID(req.HostID), models.AddCluster(id), persistence.ReturnAfter)
	if err != nil {
		return "", fmt.Errorf("failed to record cluster on host %s: %w", req.HostID, err)
	}

	m.logger.Info("mock cluster created",
		id.ZapField(),
		req.HostID.ZapField(),
		zap.String("name", req.Name),
		zap.Int("apiPort", req.APIPort),
		zap.String("consensus", req.ConsensusPlugin+"/"+req.ConsensusMode),
		zap.Int("size", req.Size))
	return id, nil
}

// DeleteCluster removes the cluster from whichever host carries it
func (m *MockProvisioner) DeleteCluster(ctx context.Context, id types.ClusterID) error {
	hosts, err := m.store.Find(ctx, models.HostFilter{})
	if err != nil {
		return err
	}

	for _, h := range hosts {
		if !h.HasCluster(id) {
			continue
		}
		_, err := m.store.FindOneAndUpdate(ctx, models.ByID(h.ID), models.RemoveCluster(id), persistence.ReturnAfter)
		if err != nil {
			return fmt.Errorf("failed to remove cluster %s from host %s: %w", id, h.ID, err)
		}
		m.logger.Info("mock cluster deleted", id.ZapField(), h.ID.ZapField())
		return nil
	}

	// Already gone
	m.logger.Info("mock cluster already absent", id.ZapField())
	return nil
}
