package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostyard/hostyard/internal/events"
	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/persistence"
	"github.com/hostyard/hostyard/internal/provisioner"
	"github.com/hostyard/hostyard/internal/types"
)

// fakeProvisioner counts calls and injects failures. Unlike the mock
// provisioner it records nothing on the host.
type fakeProvisioner struct {
	mu          sync.Mutex
	allocErr    error
	allocCalls  int
	createCalls int
	deleteCalls int
}

func (f *fakeProvisioner) AllocatePorts(ctx context.Context, hostID types.HostID, count int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocCalls++
	if f.allocErr != nil {
		return nil, f.allocErr
	}
	ports := make([]int, count)
	for i := range ports {
		ports[i] = 7050 + i
	}
	return ports, nil
}

func (f *fakeProvisioner) CreateCluster(ctx context.Context, req provisioner.CreateRequest) (types.ClusterID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return types.GenerateClusterID(), nil
}

func (f *fakeProvisioner) DeleteCluster(ctx context.Context, id types.ClusterID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return nil
}

func (f *fakeProvisioner) calls() (alloc, create, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allocCalls, f.createCalls, f.deleteCalls
}

func TestFillupProvisionsToCapacity(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	err := fx.svc.Fillup(context.Background(), host.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
		return err == nil && len(stored.Clusters) == 3
	}, 5*time.Second, 10*time.Millisecond)

	// A second fillup finds no free slot and launches nothing
	err = fx.svc.Fillup(context.Background(), host.ID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
	require.NoError(t, err)
	assert.Len(t, stored.Clusters, 3)
}

func TestFillupRequiresActiveHost(t *testing.T) {
	prov := &fakeProvisioner{}
	fx := newFixtureWith(t, persistence.NewMemoryStore(), prov)

	fx.daemon.setProbeOK(false)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	err := fx.svc.Fillup(context.Background(), host.ID)
	require.ErrorIs(t, err, ErrHostInactive)

	// The gate fires before any provisioning happens
	alloc, create, _ := prov.calls()
	assert.Equal(t, 0, alloc)
	assert.Equal(t, 0, create)

	err = fx.svc.Fillup(context.Background(), types.HostID("missing"))
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestFillupAtCapacityIsNoOp(t *testing.T) {
	prov := &fakeProvisioner{}
	fx := newFixtureWith(t, persistence.NewMemoryStore(), prov)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 2)
	fx.addCluster(t, host.ID)
	fx.addCluster(t, host.ID)

	err := fx.svc.Fillup(context.Background(), host.ID)
	require.NoError(t, err)

	alloc, _, _ := prov.calls()
	assert.Equal(t, 0, alloc)
}

func TestFillupAllocationFailure(t *testing.T) {
	prov := &fakeProvisioner{allocErr: assert.AnError}
	fx := newFixtureWith(t, persistence.NewMemoryStore(), prov)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	err := fx.svc.Fillup(context.Background(), host.ID)
	require.ErrorIs(t, err, ErrProvisionFailed)

	_, create, _ := prov.calls()
	assert.Equal(t, 0, create)
}

func TestCleanTearsDownAllClusters(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	require.NoError(t, fx.svc.Fillup(context.Background(), host.ID))
	assert.Eventually(t, func() bool {
		stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
		return err == nil && len(stored.Clusters) == 3
	}, 5*time.Second, 10*time.Millisecond)

	err := fx.svc.Clean(context.Background(), host.ID)
	require.NoError(t, err)

	// Scheduling is already back on when the call returns, the teardowns
	// finish on their own
	stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
	require.NoError(t, err)
	assert.True(t, stored.Schedulable)

	assert.Eventually(t, func() bool {
		stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
		return err == nil && len(stored.Clusters) == 0
	}, 5*time.Second, 10*time.Millisecond)

	require.Len(t, fx.events.byType(events.HostCleaned), 1)
}

func TestCleanWithoutClusters(t *testing.T) {
	prov := &fakeProvisioner{}
	fx := newFixtureWith(t, persistence.NewMemoryStore(), prov)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	err := fx.svc.Clean(context.Background(), host.ID)
	require.NoError(t, err)

	_, _, del := prov.calls()
	assert.Equal(t, 0, del)
	assert.Empty(t, fx.events.byType(events.HostCleaned))

	stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
	require.NoError(t, err)
	assert.True(t, stored.Schedulable)
}

func TestCleanRequiresActiveHost(t *testing.T) {
	prov := &fakeProvisioner{}
	fx := newFixtureWith(t, persistence.NewMemoryStore(), prov)

	fx.daemon.setProbeOK(false)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	err := fx.svc.Clean(context.Background(), host.ID)
	require.ErrorIs(t, err, ErrHostInactive)

	_, _, del := prov.calls()
	assert.Equal(t, 0, del)
}

func TestCleanDispatchesEveryTeardown(t *testing.T) {
	prov := &fakeProvisioner{}
	fx := newFixtureWith(t, persistence.NewMemoryStore(), prov)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 4)
	for i := 0; i < 4; i++ {
		fx.addCluster(t, host.ID)
	}

	err := fx.svc.Clean(context.Background(), host.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, _, del := prov.calls()
		return del == 4
	}, 5*time.Second, 10*time.Millisecond)
}

func TestResetRequiresActiveHost(t *testing.T) {
	fx := newFixture(t)

	fx.daemon.setProbeOK(false)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	err := fx.svc.Reset(context.Background(), host.ID)
	require.ErrorIs(t, err, ErrHostInactive)

	_, reset, _ := fx.daemon.calls()
	assert.Equal(t, 0, reset)
}

func TestResetRefusesWithClusters(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)
	fx.addCluster(t, host.ID)

	err := fx.svc.Reset(context.Background(), host.ID)
	require.ErrorIs(t, err, ErrClustersPresent)

	_, reset, _ := fx.daemon.calls()
	assert.Equal(t, 0, reset)
}

func TestResetWipesDaemon(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	err := fx.svc.Reset(context.Background(), host.ID)
	require.NoError(t, err)

	_, reset, _ := fx.daemon.calls()
	assert.Equal(t, 1, reset)
}

func TestResetDaemonFailure(t *testing.T) {
	fx := newFixture(t)
	fx.daemon.resetErr = assert.AnError
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 3)

	err := fx.svc.Reset(context.Background(), host.ID)
	assert.ErrorIs(t, err, ErrDaemonReset)
}
