package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
)

// Config holds all configuration for the hostyard service
type Config struct {
	// Server settings
	Server ServerConfig `envconfig:"SERVER"`

	// Logging settings
	Logging LoggingConfig `envconfig:"LOGGING"`

	// Host store settings
	Store StoreConfig `envconfig:"STORE"`

	// Daemon client settings
	Daemon DaemonConfig `envconfig:"DAEMON"`

	// Cluster provisioning settings
	Clusters ClustersConfig `envconfig:"CLUSTERS"`

	// Event webhook settings
	Events EventsConfig `envconfig:"EVENTS"`

	// Background job settings
	Jobs JobsConfig `envconfig:"JOBS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"PORT" default:"8080"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Development bool `envconfig:"DEV" default:"false"` // Whether to use development logger (more verbose)
}

// StoreConfig selects and configures the host store backend
type StoreConfig struct {
	Backend       string `envconfig:"BACKEND" default:"redis"` // memory, redis or mongo
	RedisURI      string `envconfig:"REDIS_URI" default:"redis://localhost:6379/0"`
	KeyPrefix     string `envconfig:"KEY_PREFIX" default:"hostyard"`
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"hostyard"`
}

// DaemonConfig contains daemon client configuration
type DaemonConfig struct {
	Mock         bool          `envconfig:"MOCK" default:"false"`
	ProbeTimeout time.Duration `envconfig:"PROBE_TIMEOUT" default:"5s"`
	NetworkName  string        `envconfig:"NETWORK" default:"hostyard"` // Bridge network ensured on every managed daemon
}

// ClustersConfig contains cluster provisioner configuration and the
// catalogs used when filling a host to capacity
type ClustersConfig struct {
	Mock         bool          `envconfig:"MOCK" default:"false"`
	Endpoint     string        `envconfig:"ENDPOINT" default:"http://localhost:8081"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"30s"`
	APIPortStart int           `envconfig:"API_PORT_START" default:"7050"` // Base for deriving cluster name suffixes from ports

	// ConsensusOptions holds plugin/mode pairs, e.g. "pbft/batch"
	ConsensusOptions []string `envconfig:"CONSENSUS_OPTIONS" default:"noops/batch,pbft/batch,pbft/sieve"`
	Sizes            []int    `envconfig:"SIZES" default:"4,6"`

	FillStagger  time.Duration `envconfig:"FILL_STAGGER" default:"1s"`
	CleanStagger time.Duration `envconfig:"CLEAN_STAGGER" default:"200ms"`
}

// EventsConfig contains lifecycle event webhook configuration
type EventsConfig struct {
	Enabled    bool          `envconfig:"ENABLED" default:"false"`
	Endpoint   string        `envconfig:"ENDPOINT" default:""`
	BufferSize int           `envconfig:"BUFFER_SIZE" default:"64"`
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"2s"`
}

// JobsConfig contains background job configuration
type JobsConfig struct {
	StatusInterval time.Duration `envconfig:"STATUS_INTERVAL" default:"30s"` // 0 disables the periodic status sweep
}

// ConsensusPair is one parsed entry of ClustersConfig.ConsensusOptions
type ConsensusPair struct {
	Plugin string
	Mode   string
}

// ConsensusPairs parses the plugin/mode catalog entries. Entries without
// a slash get an empty mode.
func (c ClustersConfig) ConsensusPairs() []ConsensusPair {
	pairs := make([]ConsensusPair, 0, len(c.ConsensusOptions))
	for _, opt := range c.ConsensusOptions {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		plugin, mode, _ := strings.Cut(opt, "/")
		pairs = append(pairs, ConsensusPair{Plugin: plugin, Mode: mode})
	}
	return pairs
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	var config Config

	// Process environment variables with "HOSTYARD" prefix
	if err := envconfig.Process("HOSTYARD", &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return &config, nil
}

// Module provides configuration to the fx container
var Module = fx.Options(
	fx.Provide(LoadConfig),
)
