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
	"github.com/hostyard/hostyard/internal/types"
)

// CreateHostParams carries the caller-supplied fields for host registration.
type CreateHostParams struct {
	Name        string
	DaemonURL   string
	Capacity    int
	LogLevel    string
	LogType     string
	LogServer   string
	Schedulable bool
	Fillup      bool
}

// UpdateHostParams describes a partial host update. Nil fields are left
// untouched.
type UpdateHostParams struct {
	Name        *string
	DaemonURL   *string
	Capacity    *int
	LogLevel    *string
	LogType     *string
	LogServer   *string
	Schedulable *bool
}

// Create registers a new host. The daemon endpoint is normalized and checked
// for uniqueness, the daemon is probed and prepared, and only then is the
// record persisted. A failed probe registers the host as inactive; a failed
// daemon setup aborts the whole registration so no record is left behind.
func (s *HostService) Create(ctx context.Context, params CreateHostParams) (*models.Host, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if params.DaemonURL == "" {
		return nil, fmt.Errorf("%w: daemon URL is required", ErrInvalidArgument)
	}
	if params.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", ErrInvalidArgument)
	}
	logType := params.LogType
	if logType == "" {
		logType = models.LogTypeLocal
	}
	if !models.ValidLogType(logType) {
		return nil, fmt.Errorf("%w: unknown log type %q", ErrInvalidArgument, logType)
	}
	logLevel := params.LogLevel
	if logLevel == "" {
		logLevel = "INFO"
	}
	if !models.ValidLogLevel(logLevel) {
		return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidArgument, logLevel)
	}

	daemonURL := normalizeDaemonURL(params.DaemonURL)
	logServer := normalizeLogServer(logType, params.LogServer)

	s.logger.Info("Creating host",
		zap.String("name", params.Name),
		zap.String("daemonURL", daemonURL),
		zap.Int("capacity", params.Capacity))

	// The daemon endpoint identifies the host, so two records must never
	// share one.
	_, err := s.store.FindOne(ctx, models.ByDaemonURL(daemonURL))
	if err == nil {
		s.logger.Warn("Daemon endpoint already registered", zap.String("daemonURL", daemonURL))
		return nil, ErrDuplicateDaemonURL
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing host: %v", err)
	}

	status := models.StatusActive
	daemonType := models.DaemonDocker
	if s.daemon.Probe(ctx, daemonURL) {
		detected, err := s.daemon.DetectType(ctx, daemonURL)
		if err != nil {
			// Probe succeeded moments ago, so keep going with the
			// default flavor. Continue anyway
			s.logger.Warn("Failed to detect daemon type",
				zap.String("daemonURL", daemonURL),
				zap.Error(err))
		} else {
			daemonType = detected
		}

		s.logger.Info("Preparing daemon for host",
			zap.String("daemonURL", daemonURL),
			zap.String("type", string(daemonType)))
		if err := s.daemon.Setup(ctx, daemonType, daemonURL); err != nil {
			s.logger.Error("Daemon setup failed, aborting registration",
				zap.String("daemonURL", daemonURL),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrDaemonSetup, err)
		}
	} else {
		s.logger.Warn("Daemon probe failed, registering host as inactive",
			zap.String("daemonURL", daemonURL))
		status = models.StatusInactive
	}

	host := &models.Host{
		ID:          types.GenerateHostID(),
		Name:        params.Name,
		DaemonURL:   daemonURL,
		Capacity:    params.Capacity,
		Status:      status,
		Clusters:    []types.ClusterID{},
		Type:        daemonType,
		Schedulable: params.Schedulable,
		LogLevel:    logLevel,
		LogType:     logType,
		LogServer:   logServer,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.Insert(ctx, host); err != nil {
		return nil, fmt.Errorf("failed to persist host: %v", err)
	}

	s.logger.Info("Host created",
		host.ID.ZapField(),
		zap.String("name", host.Name),
		zap.String("status", string(host.Status)))
	s.emit(ctx, events.HostCreated, host.ID, map[string]string{
		"name":       host.Name,
		"daemon_url": host.DaemonURL,
	})

	if params.Fillup && host.Capacity > 0 {
		hostID := host.ID
		go func() {
			// Detach from the request so provisioning outlives it
			if err := s.Fillup(context.Background(), hostID); err != nil {
				s.logger.Warn("Fillup after create failed",
					hostID.ZapField(),
					zap.Error(err))
			}
		}()
	}

	return host, nil
}

// GetByID returns the host with the given ID.
func (s *HostService) GetByID(ctx context.Context, hostID types.HostID) (*models.Host, error) {
	return s.getHost(ctx, hostID)
}

// GetActiveByID returns the host with the given ID only if its daemon passed
// the last probe.
func (s *HostService) GetActiveByID(ctx context.Context, hostID types.HostID) (*models.Host, error) {
	return s.requireActiveHost(ctx, hostID)
}

// List returns hosts matching the filter, ordered by creation time.
func (s *HostService) List(ctx context.Context, filter models.HostFilter) ([]*models.Host, error) {
	hosts, err := s.store.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %v", err)
	}
	return hosts, nil
}

// Update applies a partial update to a host. Capacity can never drop below
// the number of clusters already placed; endpoint and log routing fields are
// normalized the same way Create normalizes them.
func (s *HostService) Update(ctx context.Context, hostID types.HostID, params UpdateHostParams) (*models.Host, error) {
	host, err := s.getHost(ctx, hostID)
	if err != nil {
		return nil, err
	}

	if params.Capacity != nil && *params.Capacity < len(host.Clusters) {
		s.logger.Warn("Refusing capacity below cluster count",
			hostID.ZapField(),
			zap.Int("requested", *params.Capacity),
			zap.Int("clusters", len(host.Clusters)))
		return nil, ErrCapacityTooSmall
	}
	if params.LogType != nil && !models.ValidLogType(*params.LogType) {
		return nil, fmt.Errorf("%w: unknown log type %q", ErrInvalidArgument, *params.LogType)
	}
	if params.LogLevel != nil && !models.ValidLogLevel(*params.LogLevel) {
		return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidArgument, *params.LogLevel)
	}

	mutation := models.HostMutation{
		Name:        params.Name,
		Capacity:    params.Capacity,
		Schedulable: params.Schedulable,
		LogLevel:    params.LogLevel,
	}
	if params.DaemonURL != nil {
		normalized := normalizeDaemonURL(*params.DaemonURL)
		mutation.DaemonURL = &normalized
	}

	// Log routing has to stay consistent: local routing carries no server,
	// remote routing gets the udp scheme filled in.
	logType := host.LogType
	if params.LogType != nil {
		logType = *params.LogType
		mutation.LogType = params.LogType
	}
	if params.LogServer != nil {
		normalized := normalizeLogServer(logType, *params.LogServer)
		mutation.LogServer = &normalized
	} else if params.LogType != nil && logType == models.LogTypeLocal && host.LogServer != "" {
		empty := ""
		mutation.LogServer = &empty
	}

	if mutation.IsZero() {
		return host, nil
	}

	updated, err := s.store.FindOneAndUpdate(ctx, models.ByID(hostID), mutation, persistence.ReturnAfter)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrHostNotFound
		}
		return nil, fmt.Errorf("failed to update host: %v", err)
	}

	s.logger.Info("Host updated", hostID.ZapField())
	s.emit(ctx, events.HostUpdated, hostID, nil)
	return updated, nil
}

// Delete removes a host. Hosts still carrying clusters are refused; the
// daemon-side teardown is best effort and never blocks the removal.
func (s *HostService) Delete(ctx context.Context, hostID types.HostID) error {
	host, err := s.getHost(ctx, hostID)
	if err != nil {
		return err
	}
	if len(host.Clusters) > 0 {
		s.logger.Warn("Refusing to delete host with clusters",
			hostID.ZapField(),
			zap.Int("clusters", len(host.Clusters)))
		return ErrClustersPresent
	}

	s.daemon.Cleanup(ctx, host.DaemonURL)

	if err := s.store.DeleteOne(ctx, models.ByID(hostID)); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrHostNotFound
		}
		return fmt.Errorf("failed to delete host: %v", err)
	}

	s.logger.Info("Host deleted", hostID.ZapField(), zap.String("name", host.Name))
	s.emit(ctx, events.HostDeleted, hostID, map[string]string{"name": host.Name})
	return nil
}

// RefreshStatus probes the daemon and reconciles the stored status with the
// outcome. The refreshed host is returned either way.
func (s *HostService) RefreshStatus(ctx context.Context, hostID types.HostID) (*models.Host, error) {
	host, err := s.getHost(ctx, hostID)
	if err != nil {
		return nil, err
	}

	status := models.StatusInactive
	if s.daemon.Probe(ctx, host.DaemonURL) {
		status = models.StatusActive
	}
	if status == host.Status {
		return host, nil
	}

	s.logger.Info("Host status changed",
		hostID.ZapField(),
		zap.String("from", string(host.Status)),
		zap.String("to", string(status)))
	updated, err := s.store.FindOneAndUpdate(ctx, models.ByID(hostID), models.SetStatus(status), persistence.ReturnAfter)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrHostNotFound
		}
		return nil, fmt.Errorf("failed to store host status: %v", err)
	}

	s.emit(ctx, events.HostStatusChanged, hostID, map[string]string{
		"from": string(host.Status),
		"to":   string(status),
	})
	return updated, nil
}

// IsActive reports whether the host's daemon passed its last probe.
func (s *HostService) IsActive(ctx context.Context, hostID types.HostID) (bool, error) {
	host, err := s.getHost(ctx, hostID)
	if err != nil {
		return false, err
	}
	return host.IsActive(), nil
}
