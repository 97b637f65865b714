package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/events"
	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/persistence"
	"github.com/hostyard/hostyard/internal/provisioner"
	"github.com/hostyard/hostyard/internal/types"
)

// fakeDaemon lets tests pick probe and setup outcomes and counts the calls
// the service makes.
type fakeDaemon struct {
	mu           sync.Mutex
	probeOK      bool
	daemonType   models.DaemonType
	detectErr    error
	setupErr     error
	resetErr     error
	setupCalls   int
	resetCalls   int
	cleanupCalls int
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{probeOK: true, daemonType: models.DaemonDocker}
}

func (f *fakeDaemon) Probe(ctx context.Context, daemonURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeOK
}

func (f *fakeDaemon) DetectType(ctx context.Context, daemonURL string) (models.DaemonType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.daemonType, f.detectErr
}

func (f *fakeDaemon) Setup(ctx context.Context, daemonType models.DaemonType, daemonURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupCalls++
	return f.setupErr
}

func (f *fakeDaemon) Cleanup(ctx context.Context, daemonURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupCalls++
}

func (f *fakeDaemon) Reset(ctx context.Context, daemonType models.DaemonType, daemonURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return f.resetErr
}

func (f *fakeDaemon) Close() error { return nil }

func (f *fakeDaemon) setProbeOK(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeOK = ok
}

func (f *fakeDaemon) calls() (setup, reset, cleanup int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setupCalls, f.resetCalls, f.cleanupCalls
}

// recordingBroadcaster captures emitted events for assertions.
type recordingBroadcaster struct {
	mu       sync.Mutex
	recorded []events.Event
}

func (r *recordingBroadcaster) BroadcastEvent(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, event)
	return nil
}

func (r *recordingBroadcaster) Close() error { return nil }

func (r *recordingBroadcaster) byType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, event := range r.recorded {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type fixture struct {
	svc    *HostService
	store  persistence.Store
	daemon *fakeDaemon
	events *recordingBroadcaster
}

// newFixture wires a service against the in-memory store, a healthy fake
// daemon and the mock provisioner, with staggers short enough for tests.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := persistence.NewMemoryStore()
	provCfg := &config.Config{Clusters: config.ClustersConfig{APIPortStart: 7050}}
	prov := provisioner.NewMockProvisioner(provCfg, store, zaptest.NewLogger(t))
	return newFixtureWith(t, store, prov)
}

// newFixtureWith builds the fixture around a caller-chosen store and
// provisioner.
func newFixtureWith(t *testing.T, store persistence.Store, prov provisioner.Provisioner) *fixture {
	t.Helper()
	fd := newFakeDaemon()
	rec := &recordingBroadcaster{}

	svc := NewHostService(store, fd, prov, rec, HostServiceConfig{
		APIPortStart: 7050,
		FillStagger:  time.Millisecond,
		CleanStagger: time.Millisecond,
		Consensus:    []config.ConsensusPair{{Plugin: "noops", Mode: "batch"}, {Plugin: "pbft", Mode: "batch"}},
		Sizes:        []int{4, 6},
	}, zaptest.NewLogger(t))

	return &fixture{svc: svc, store: store, daemon: fd, events: rec}
}

func (fx *fixture) mustCreate(t *testing.T, name, daemonURL string, capacity int) *models.Host {
	t.Helper()
	host, err := fx.svc.Create(context.Background(), CreateHostParams{
		Name:        name,
		DaemonURL:   daemonURL,
		Capacity:    capacity,
		Schedulable: true,
	})
	require.NoError(t, err)
	return host
}

// addCluster places a cluster ID on the stored host directly, bypassing the
// provisioning path.
func (fx *fixture) addCluster(t *testing.T, hostID types.HostID) types.ClusterID {
	t.Helper()
	clusterID := types.GenerateClusterID()
	_, err := fx.store.FindOneAndUpdate(context.Background(), models.ByID(hostID), models.AddCluster(clusterID), persistence.ReturnAfter)
	require.NoError(t, err)
	return clusterID
}

func TestCreateNormalizesAndPersists(t *testing.T) {
	fx := newFixture(t)

	host, err := fx.svc.Create(context.Background(), CreateHostParams{
		Name:        "worker-1",
		DaemonURL:   "192.168.1.10:2375",
		Capacity:    5,
		LogServer:   "10.0.0.5:514",
		Schedulable: true,
	})
	require.NoError(t, err)

	// Bare endpoint gets the tcp scheme
	assert.Equal(t, "tcp://192.168.1.10:2375", host.DaemonURL)
	// Local log routing never carries a server, whatever the caller sent
	assert.Equal(t, models.LogTypeLocal, host.LogType)
	assert.Equal(t, "", host.LogServer)
	assert.Equal(t, "INFO", host.LogLevel)
	assert.Equal(t, models.StatusActive, host.Status)
	assert.Equal(t, models.DaemonDocker, host.Type)
	assert.Empty(t, host.Clusters)
	assert.True(t, host.ID.IsValid())

	stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
	require.NoError(t, err)
	assert.Equal(t, host.DaemonURL, stored.DaemonURL)

	setup, _, _ := fx.daemon.calls()
	assert.Equal(t, 1, setup)
	require.Len(t, fx.events.byType(events.HostCreated), 1)
}

func TestCreateSchemeNormalizationIsIdempotent(t *testing.T) {
	fx := newFixture(t)

	host := fx.mustCreate(t, "worker-1", "tcp://192.168.1.10:2375", 5)
	assert.Equal(t, "tcp://192.168.1.10:2375", host.DaemonURL)
}

func TestCreateRejectsDuplicateDaemonURL(t *testing.T) {
	fx := newFixture(t)
	fx.mustCreate(t, "worker-1", "tcp://192.168.1.10:2375", 5)

	// The same endpoint without a scheme normalizes to the same URL
	_, err := fx.svc.Create(context.Background(), CreateHostParams{
		Name:      "worker-2",
		DaemonURL: "192.168.1.10:2375",
		Capacity:  5,
	})
	require.ErrorIs(t, err, ErrDuplicateDaemonURL)

	hosts, err := fx.store.Find(context.Background(), models.HostFilter{})
	require.NoError(t, err)
	assert.Len(t, hosts, 1)
}

func TestCreateProbeFailureRegistersInactive(t *testing.T) {
	fx := newFixture(t)
	fx.daemon.setProbeOK(false)

	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)
	assert.Equal(t, models.StatusInactive, host.Status)

	// An unreachable daemon is never prepared
	setup, _, _ := fx.daemon.calls()
	assert.Equal(t, 0, setup)
}

func TestCreateSetupFailureLeavesNoRecord(t *testing.T) {
	fx := newFixture(t)
	fx.daemon.setupErr = assert.AnError

	_, err := fx.svc.Create(context.Background(), CreateHostParams{
		Name:      "worker-1",
		DaemonURL: "192.168.1.10:2375",
		Capacity:  5,
	})
	require.ErrorIs(t, err, ErrDaemonSetup)

	hosts, err := fx.store.Find(context.Background(), models.HostFilter{})
	require.NoError(t, err)
	assert.Empty(t, hosts)
	assert.Empty(t, fx.events.byType(events.HostCreated))
}

func TestCreateSyslogRouting(t *testing.T) {
	fx := newFixture(t)

	host, err := fx.svc.Create(context.Background(), CreateHostParams{
		Name:      "worker-1",
		DaemonURL: "192.168.1.10:2375",
		Capacity:  5,
		LogType:   models.LogTypeSyslog,
		LogLevel:  "DEBUG",
		LogServer: "10.0.0.5:514",
	})
	require.NoError(t, err)

	assert.Equal(t, models.LogTypeSyslog, host.LogType)
	assert.Equal(t, "udp://10.0.0.5:514", host.LogServer)
	assert.Equal(t, "DEBUG", host.LogLevel)
}

func TestCreateValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params CreateHostParams
	}{
		{"missing name", CreateHostParams{DaemonURL: "h:1", Capacity: 1}},
		{"missing daemon URL", CreateHostParams{Name: "w", Capacity: 1}},
		{"negative capacity", CreateHostParams{Name: "w", DaemonURL: "h:1", Capacity: -1}},
		{"unknown log type", CreateHostParams{Name: "w", DaemonURL: "h:1", Capacity: 1, LogType: "journald"}},
		{"unknown log level", CreateHostParams{Name: "w", DaemonURL: "h:1", Capacity: 1, LogLevel: "TRACE"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.Create(ctx, tc.params)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestCreateWithFillupReachesCapacity(t *testing.T) {
	fx := newFixture(t)

	host, err := fx.svc.Create(context.Background(), CreateHostParams{
		Name:        "worker-1",
		DaemonURL:   "192.168.1.10:2375",
		Capacity:    3,
		Schedulable: true,
		Fillup:      true,
	})
	require.NoError(t, err)

	// Provisioning runs detached from the create call
	assert.Eventually(t, func() bool {
		stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
		return err == nil && len(stored.Clusters) == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGetByID(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	found, err := fx.svc.GetByID(context.Background(), host.ID)
	require.NoError(t, err)
	assert.Equal(t, host.ID, found.ID)

	_, err = fx.svc.GetByID(context.Background(), types.HostID("missing"))
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestGetActiveByID(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	found, err := fx.svc.GetActiveByID(context.Background(), host.ID)
	require.NoError(t, err)
	assert.Equal(t, host.ID, found.ID)

	fx.daemon.setProbeOK(false)
	inactive := fx.mustCreate(t, "worker-2", "192.168.1.11:2375", 5)

	_, err = fx.svc.GetActiveByID(context.Background(), inactive.ID)
	assert.ErrorIs(t, err, ErrHostInactive)

	_, err = fx.svc.GetActiveByID(context.Background(), types.HostID("missing"))
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestListFilters(t *testing.T) {
	fx := newFixture(t)
	fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	fx.daemon.setProbeOK(false)
	fx.mustCreate(t, "worker-2", "192.168.1.11:2375", 5)

	all, err := fx.svc.List(context.Background(), models.HostFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active := models.StatusActive
	actives, err := fx.svc.List(context.Background(), models.HostFilter{Status: &active})
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, "worker-1", actives[0].Name)
}

func TestUpdateFields(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	name := "worker-renamed"
	capacity := 8
	schedulable := false
	updated, err := fx.svc.Update(context.Background(), host.ID, UpdateHostParams{
		Name:        &name,
		Capacity:    &capacity,
		Schedulable: &schedulable,
	})
	require.NoError(t, err)

	assert.Equal(t, "worker-renamed", updated.Name)
	assert.Equal(t, 8, updated.Capacity)
	assert.False(t, updated.Schedulable)
	// Untouched fields survive
	assert.Equal(t, "tcp://192.168.1.10:2375", updated.DaemonURL)
	require.Len(t, fx.events.byType(events.HostUpdated), 1)
}

func TestUpdateCapacityGuard(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)
	fx.addCluster(t, host.ID)
	fx.addCluster(t, host.ID)

	capacity := 1
	_, err := fx.svc.Update(context.Background(), host.ID, UpdateHostParams{Capacity: &capacity})
	require.ErrorIs(t, err, ErrCapacityTooSmall)

	// The guard fires before anything is written
	stored, err := fx.store.FindOne(context.Background(), models.ByID(host.ID))
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Capacity)

	// Capacity equal to the cluster count is allowed
	capacity = 2
	updated, err := fx.svc.Update(context.Background(), host.ID, UpdateHostParams{Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Capacity)
}

func TestUpdateNormalizesDaemonURL(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	daemonURL := "192.168.1.99:2376"
	updated, err := fx.svc.Update(context.Background(), host.ID, UpdateHostParams{DaemonURL: &daemonURL})
	require.NoError(t, err)
	assert.Equal(t, "tcp://192.168.1.99:2376", updated.DaemonURL)
}

func TestUpdateLogRouting(t *testing.T) {
	fx := newFixture(t)
	host, err := fx.svc.Create(context.Background(), CreateHostParams{
		Name:      "worker-1",
		DaemonURL: "192.168.1.10:2375",
		Capacity:  5,
		LogType:   models.LogTypeSyslog,
		LogServer: "10.0.0.5:514",
	})
	require.NoError(t, err)

	// A new collector endpoint gets the udp scheme
	logServer := "10.0.0.9:514"
	updated, err := fx.svc.Update(context.Background(), host.ID, UpdateHostParams{LogServer: &logServer})
	require.NoError(t, err)
	assert.Equal(t, "udp://10.0.0.9:514", updated.LogServer)

	// Switching to local routing clears the collector
	logType := models.LogTypeLocal
	updated, err = fx.svc.Update(context.Background(), host.ID, UpdateHostParams{LogType: &logType})
	require.NoError(t, err)
	assert.Equal(t, models.LogTypeLocal, updated.LogType)
	assert.Equal(t, "", updated.LogServer)
}

func TestUpdateNothingToDo(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	updated, err := fx.svc.Update(context.Background(), host.ID, UpdateHostParams{})
	require.NoError(t, err)
	assert.Equal(t, host.ID, updated.ID)
	assert.Empty(t, fx.events.byType(events.HostUpdated))
}

func TestUpdateMissingHost(t *testing.T) {
	fx := newFixture(t)

	name := "anything"
	_, err := fx.svc.Update(context.Background(), types.HostID("missing"), UpdateHostParams{Name: &name})
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestDeleteRefusesWithClusters(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)
	fx.addCluster(t, host.ID)

	err := fx.svc.Delete(context.Background(), host.ID)
	require.ErrorIs(t, err, ErrClustersPresent)

	// Nothing was torn down and the record is still there
	_, _, cleanup := fx.daemon.calls()
	assert.Equal(t, 0, cleanup)
	_, err = fx.store.FindOne(context.Background(), models.ByID(host.ID))
	assert.NoError(t, err)
}

func TestDeleteRemovesHost(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	err := fx.svc.Delete(context.Background(), host.ID)
	require.NoError(t, err)

	_, _, cleanup := fx.daemon.calls()
	assert.Equal(t, 1, cleanup)
	_, err = fx.store.FindOne(context.Background(), models.ByID(host.ID))
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	require.Len(t, fx.events.byType(events.HostDeleted), 1)

	err = fx.svc.Delete(context.Background(), host.ID)
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestRefreshStatusFlips(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	// Daemon goes dark
	fx.daemon.setProbeOK(false)
	refreshed, err := fx.svc.RefreshStatus(context.Background(), host.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, refreshed.Status)

	changes := fx.events.byType(events.HostStatusChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, "active", changes[0].Detail["from"])
	assert.Equal(t, "inactive", changes[0].Detail["to"])

	// Daemon comes back
	fx.daemon.setProbeOK(true)
	refreshed, err = fx.svc.RefreshStatus(context.Background(), host.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, refreshed.Status)
	assert.Len(t, fx.events.byType(events.HostStatusChanged), 2)
}

func TestRefreshStatusNoChange(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	refreshed, err := fx.svc.RefreshStatus(context.Background(), host.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, refreshed.Status)
	assert.Empty(t, fx.events.byType(events.HostStatusChanged))
}

func TestIsActive(t *testing.T) {
	fx := newFixture(t)
	host := fx.mustCreate(t, "worker-1", "192.168.1.10:2375", 5)

	active, err := fx.svc.IsActive(context.Background(), host.ID)
	require.NoError(t, err)
	assert.True(t, active)

	fx.daemon.setProbeOK(false)
	_, err = fx.svc.RefreshStatus(context.Background(), host.ID)
	require.NoError(t, err)

	active, err = fx.svc.IsActive(context.Background(), host.ID)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = fx.svc.IsActive(context.Background(), types.HostID("missing"))
	assert.ErrorIs(t, err, ErrHostNotFound)
}
