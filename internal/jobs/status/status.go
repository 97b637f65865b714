package status

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/types"
)

// Service is the slice of the host service the status sweep drives.
type Service interface {
	List(ctx context.Context, filter models.HostFilter) ([]*models.Host, error)
	RefreshStatus(ctx context.Context, hostID types.HostID) (*models.Host, error)
}

// Manager runs the periodic sweep that probes every host's daemon and
// reconciles the stored status with the outcome.
type Manager struct {
	service  Service
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
}

// NewManager creates a new status sweep manager
func NewManager(service Service, interval time.Duration, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		service:  service,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("status-job"),
	}
}

// Start begins the status sweep in a goroutine
func (m *Manager) Start() {
	m.logger.Info("Starting status sweep", zap.Duration("interval", m.interval))
	go m.run()
}

// Stop cancels the status sweep
func (m *Manager) Stop() {
	m.logger.Info("Stopping status sweep")
	m.cancel()
}

func (m *Manager) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Status sweep shutting down")
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep refreshes every host once. Per-host failures are logged and the
// sweep moves on to the next host.
func (m *Manager) sweep() {
	hosts, err := m.service.List(m.ctx, models.HostFilter{})
	if err != nil {
		m.logger.Error("Failed to list hosts for status sweep", zap.Error(err))
		return
	}

	changed := 0
	for _, host := range hosts {
		before := host.Status
		refreshed, err := m.service.RefreshStatus(m.ctx, host.ID)
		if err != nil {
			m.logger.Warn("Failed to refresh host status",
				host.ID.ZapField(),
				zap.Error(err))
			continue
		}
		if refreshed.Status != before {
			changed++
		}
	}

	if changed > 0 {
		m.logger.Info("Status sweep completed",
			zap.Int("hosts", len(hosts)),
			zap.Int("changed", changed))
	}
}
