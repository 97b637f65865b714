package daemon

import (
	"context"

	"github.com/hostyard/hostyard/internal/models"
)

// Client defines the operations the host manager needs from a container
// daemon. Implementations talk to one daemon per call, addressed by its
// scheme-prefixed URL.
type Client interface {
	// Probe reports whether the daemon at the given address answers
	// within the configured probe timeout.
	Probe(ctx context.Context, daemonURL string) bool

	// DetectType inspects the daemon and reports its flavor.
	DetectType(ctx context.Context, daemonURL string) (models.DaemonType, error)

	// Setup prepares a freshly added daemon for carrying clusters.
	Setup(ctx context.Context, daemonType models.DaemonType, daemonURL string) error

	// Cleanup tears down per-host state before the host record is removed.
	// Best effort: failures are logged, never reported.
	Cleanup(ctx context.Context, daemonURL string)

	// Reset force-removes everything the manager ever placed on the daemon.
	Reset(ctx context.Context, daemonType models.DaemonType, daemonURL string) error

	// Close releases any connections held by the client
	Close() error
}
