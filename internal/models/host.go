package models

import (
	"slices"
	"time"

	"github.com/hostyard/hostyard/internal/types"
)

// Status describes whether a host's daemon answered the most recent probe.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// DaemonType identifies the flavor of container daemon running on a host.
type DaemonType string

const (
	DaemonDocker DaemonType = "docker"
	DaemonSwarm  DaemonType = "swarm"
)

// Log routing catalogs. LogTypeLocal means no remote log sink and forces
// an empty log server on the host record.
const (
	LogTypeLocal  = "local"
	LogTypeSyslog = "syslog"
)

var (
	// LogTypes lists the accepted log_type values.
	LogTypes = []string{LogTypeLocal, LogTypeSyslog}
	// LogLevels lists the accepted log_level values.
	LogLevels = []string{"DEBUG", "INFO", "NOTICE", "WARNING", "ERROR", "CRITICAL"}
)

// ValidLogType reports whether t is a known log type.
func ValidLogType(t string) bool {
	return slices.Contains(LogTypes, t)
}

// ValidLogLevel reports whether l is a known log level.
func ValidLogLevel(l string) bool {
	return slices.Contains(LogLevels, l)
}

// Host is the record for a single daemon host under management.
type Host struct {
	// Unique identifier, also the storage key
	ID types.HostID `json:"id" bson:"_id"`
	// Operator-facing display name
	Name string `json:"name" bson:"name"`
	// Daemon endpoint, always scheme-prefixed (tcp://...)
	DaemonURL string `json:"daemon_url" bson:"daemon_url"`
	// Maximum number of clusters this host may carry
	Capacity int `json:"capacity" bson:"capacity"`
	// Result of the most recent liveness probe
	Status Status `json:"status" bson:"status"`
	// IDs of the clusters currently placed on this host
	Clusters []types.ClusterID `json:"clusters" bson:"clusters"`
	// Daemon flavor detected at creation time
	Type DaemonType `json:"type" bson:"type"`
	// Whether the placement layer may put new clusters here
	Schedulable bool `json:"schedulable" bson:"schedulable"`
	// Log verbosity passed down to clusters created on this host
	LogLevel string `json:"log_level" bson:"log_level"`
	// Log routing mode, one of LogTypes
	LogType string `json:"log_type" bson:"log_type"`
	// Remote log sink, scheme-prefixed; empty when LogType is local
	LogServer string `json:"log_server" bson:"log_server"`
	// Record creation time
	CreatedAt time.Time `json:"create_ts" bson:"create_ts"`
}

// FreeSlots returns how many more clusters fit on the host.
func (h *Host) FreeSlots() int {
	free := h.Capacity - len(h.Clusters)
	if free < 0 {
		return 0
	}
	return free
}

// IsActive reports whether the host's daemon answered its last probe.
func (h *Host) IsActive() bool {
	return h.Status == StatusActive
}

// HasCluster reports whether the given cluster is placed on this host.
func (h *Host) HasCluster(id types.ClusterID) bool {
	return slices.Contains(h.Clusters, id)
}

// Clone returns a deep copy so store callers never share slices with
// the stored record.
func (h *Host) Clone() *Host {
	c := *h
	c.Clusters = slices.Clone(h.Clusters)
	return &c
}
