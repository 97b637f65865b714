package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/models"
	"go.uber.org/zap"
)

// ManagedLabel marks every resource this service creates on a daemon, so
// Reset can find and remove them without touching anything else.
const ManagedLabel = "com.hostyard.managed"

// DockerClient implements Client against real Docker Engine and Swarm
// daemons. API clients are cached per daemon address.
type DockerClient struct {
	probeTimeout time.Duration
	networkName  string
	logger       *zap.Logger

	mu      sync.Mutex
	clients map[string]*dockerclient.Client
}

// Ensure DockerClient implements the Client interface
var _ Client = (*DockerClient)(nil)

// NewDockerClient creates a daemon client for real Docker endpoints
func NewDockerClient(cfg *config.Config, logger *zap.Logger) *DockerClient {
	return &DockerClient{
		probeTimeout: cfg.Daemon.ProbeTimeout,
		networkName:  cfg.Daemon.NetworkName,
		logger:       logger.Named("daemon"),
		clients:      make(map[string]*dockerclient.Client),
	}
}

// clientFor returns a cached API client for the daemon address, creating
// one on first use
func (d *DockerClient) clientFor(daemonURL string) (*dockerclient.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cli, ok := d.clients[daemonURL]; ok {
		return cli, nil
	}

	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost(daemonURL),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client for %s: %w", daemonURL, err)
	}

	d.clients[daemonURL] = cli
	return cli, nil
}

// Probe reports whether the daemon answers a ping within the probe timeout
func (d *DockerClient) Probe(ctx context.Context, daemonURL string) bool {
	cli, err := d.clientFor(daemonURL)
	if err != nil {
		d.logger.Warn("cannot reach daemon", zap.String("daemonURL", daemonURL), zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	if _, err := cli.Ping(ctx); err != nil {
		d.logger.Debug("daemon ping failed", zap.String("daemonURL", daemonURL), zap.Error(err))
		return false
	}
	return true
}

// DetectType reports whether the daemon is a plain engine or a swarm manager
func (d *DockerClient) DetectType(ctx context.Context, daemonURL string) (models.DaemonType, error) {
	cli, err := d.clientFor(daemonURL)
	if err != nil {
		return "", err
	}

	info, err := cli.Info(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get info from %s: %w", daemonURL, err)
	}

	if info.Swarm.ControlAvailable {
		return models.DaemonSwarm, nil
	}
	return models.DaemonDocker, nil
}

// Setup ensures the managed network exists on the daemon
func (d *DockerClient) Setup(ctx context.Context, daemonType models.DaemonType, daemonURL string) error {
	cli, err := d.clientFor(daemonURL)
	if err != nil {
		return err
	}

	args := filters.NewArgs()
	args.Add("name", d.networkName)
	networks, err := cli.NetworkList(ctx, network.ListOptions{Filters: args})
	if err != nil {
		return fmt.Errorf("failed to list networks on %s: %w", daemonURL, err)
	}
	for _, nw := range networks {
		if nw.Name == d.networkName {
			return nil
		}
	}

	// Swarm daemons need an overlay network so cluster members can span nodes
	driver := "bridge"
	if daemonType == models.DaemonSwarm {
		driver = "overlay"
	}

	_, err = cli.NetworkCreate(ctx, d.networkName, network.CreateOptions{
		Driver: driver,
		Labels: map[string]string{ManagedLabel: "true"},
	})
	if err != nil {
		return fmt.Errorf("failed to create network %s on %s: %w", d.networkName, daemonURL, err)
	}

	d.logger.Info("daemon setup complete",
		zap.String("daemonURL", daemonURL),
		zap.String("network", d.networkName),
		zap.String("driver", driver))
	return nil
}

// Cleanup removes the managed network. Best effort.
func (d *DockerClient) Cleanup(ctx context.Context, daemonURL string) {
	cli, err := d.clientFor(daemonURL)
	if err != nil {
		d.logger.Warn("cleanup skipped, cannot reach daemon",
			zap.String("daemonURL", daemonURL), zap.Error(err))
		return
	}

	args := filters.NewArgs()
	args.Add("name", d.networkName)
	networks, err := cli.NetworkList(ctx, network.ListOptions{Filters: args})
	if err != nil {
		d.logger.Warn("cleanup failed to list networks",
			zap.String("daemonURL", daemonURL), zap.Error(err))
		return
	}

	for _, nw := range networks {
		if nw.Name != d.networkName {
			continue
		}
		if err := cli.NetworkRemove(ctx, nw.ID); err != nil && !dockerclient.IsErrNotFound(err) {
			d.logger.Warn("cleanup failed to remove network",
				zap.String("daemonURL", daemonURL),
				zap.String("network", nw.Name),
				zap.Error(err))
		}
	}
}

// Reset force-removes every container carrying the managed label
func (d *DockerClient) Reset(ctx context.Context, daemonType models.DaemonType, daemonURL string) error {
	cli, err := d.clientFor(daemonURL)
	if err != nil {
		return err
	}

	args := filters.NewArgs()
	args.Add("label", ManagedLabel+"=true")
	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return fmt.Errorf("failed to list containers on %s: %w", daemonURL, err)
	}

	for _, c := range containers {
		err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
		if err != nil && !dockerclient.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove container %s on %s: %w", c.ID, daemonURL, err)
		}
	}

	d.logger.Info("daemon reset complete",
		zap.String("daemonURL", daemonURL),
		zap.Int("containersRemoved", len(containers)))
	return nil
}

// Close closes all cached API clients
func (d *DockerClient) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for addr, cli := range d.clients {
		if err := cli.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.clients, addr)
	}
	return firstErr
}
