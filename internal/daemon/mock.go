package daemon

import (
	"context"

	"github.com/hostyard/hostyard/internal/models"
	"go.uber.org/zap"
)

// MockClient is a daemon client that only logs. Used in mock mode and in
// tests; every operation succeeds and every probe answers.
type MockClient struct {
	logger *zap.Logger
}

// Ensure MockClient implements the Client interface
var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock daemon client
func NewMockClient(logger *zap.Logger) *MockClient {
	return &MockClient{logger: logger.Named("daemon-mock")}
}

func (m *MockClient) Probe(ctx context.Context, daemonURL string) bool {
	m.logger.Info("mock probe", zap.String("daemonURL", daemonURL))
	return true
}

func (m *MockClient) DetectType(ctx context.Context, daemonURL string) (models.DaemonType, error) {
	m.logger.Info("mock detect type", zap.String("daemonURL", daemonURL))
	return models.DaemonDocker, nil
}

func (m *MockClient) Setup(ctx context.Context, daemonType models.DaemonType, daemonURL string) error {
	m.logger.Info("mock setup",
		zap.String("daemonURL", daemonURL), zap.String("type", string(daemonType)))
	return nil
}

func (m *MockClient) Cleanup(ctx context.Context, daemonURL string) {
	m.logger.Info("mock cleanup", zap.String("daemonURL", daemonURL))
}

func (m *MockClient) Reset(ctx context.Context, daemonType models.DaemonType, daemonURL string) error {
	m.logger.Info("mock reset",
		zap.String("daemonURL", daemonURL), zap.String("type", string(daemonType)))
	return nil
}

func (m *MockClient) Close() error {
	return nil
}
