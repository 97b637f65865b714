package models

import (
	"slices"

	"github.com/hostyard/hostyard/internal/types"
)

// HostMutation is a structured partial update applied atomically by the
// store's FindOneAndUpdate. Nil fields are left untouched. Cluster deltas
// use add-if-absent and remove-all semantics.
type HostMutation struct {
	Name        *string
	DaemonURL   *string
	Capacity    *int
	Status      *Status
	Schedulable *bool
	LogLevel    *string
	LogType     *string
	LogServer   *string

	AddClusters    []types.ClusterID
	RemoveClusters []types.ClusterID
}

// IsZero reports whether the mutation changes nothing.
func (m HostMutation) IsZero() bool {
	return m.Name == nil && m.DaemonURL == nil && m.Capacity == nil &&
		m.Status == nil && m.Schedulable == nil && m.LogLevel == nil &&
		m.LogType == nil && m.LogServer == nil &&
		len(m.AddClusters) == 0 && len(m.RemoveClusters) == 0
}

// Apply mutates h in place. Used by the in-process backends; the mongo
// backend translates the mutation to an update document instead.
func (m HostMutation) Apply(h *Host) {
	if m.Name != nil {
		h.Name = *m.Name
	}
	if m.DaemonURL != nil {
		h.DaemonURL = *m.DaemonURL
	}
	if m.Capacity != nil {
		h.Capacity = *m.Capacity
	}
	if m.Status != nil {
		h.Status = *m.Status
	}
	if m.Schedulable != nil {
		h.Schedulable = *m.Schedulable
	}
	if m.LogLevel != nil {
		h.LogLevel = *m.LogLevel
	}
	if m.LogType != nil {
		h.LogType = *m.LogType
	}
	if m.LogServer != nil {
		h.LogServer = *m.LogServer
	}
	for _, id := range m.AddClusters {
		if !slices.Contains(h.Clusters, id) {
			h.Clusters = append(h.Clusters, id)
		}
	}
	if len(m.RemoveClusters) > 0 {
		h.Clusters = slices.DeleteFunc(h.Clusters, func(id types.ClusterID) bool {
			return slices.Contains(m.RemoveClusters, id)
		})
	}
}

// Convenience constructors for the common single-field mutations.

func SetStatus(s Status) HostMutation {
	return HostMutation{Status: &s}
}

func SetSchedulable(v bool) HostMutation {
	return HostMutation{Schedulable: &v}
}

func AddCluster(id types.ClusterID) HostMutation {
	return HostMutation{AddClusters: []types.ClusterID{id}}
}

func RemoveCluster(id types.ClusterID) HostMutation {
	return HostMutation{RemoveClusters: []types.ClusterID{id}}
}
