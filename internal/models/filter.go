package models

import "github.com/hostyard/hostyard/internal/types"

// HostFilter selects hosts by exact match on the set fields. The zero
// filter matches every host.
type HostFilter struct {
	ID          *types.HostID
	Name        *string
	DaemonURL   *string
	Status      *Status
	Type        *DaemonType
	Schedulable *bool
}

// ByID returns a filter matching a single host id.
func ByID(id types.HostID) HostFilter {
	return HostFilter{ID: &id}
}

// ByDaemonURL returns a filter matching on the daemon endpoint.
func ByDaemonURL(url string) HostFilter {
	return HostFilter{DaemonURL: &url}
}

// ActiveByID returns a filter matching a single host only while active.
func ActiveByID(id types.HostID) HostFilter {
	s := StatusActive
	return HostFilter{ID: &id, Status: &s}
}

// Matches reports whether h satisfies every set field.
func (f HostFilter) Matches(h *Host) bool {
	if f.ID != nil && h.ID != *f.ID {
		return false
	}
	if f.Name != nil && h.Name != *f.Name {
		return false
	}
	if f.DaemonURL != nil && h.DaemonURL != *f.DaemonURL {
		return false
	}
	if f.Status != nil && h.Status != *f.Status {
		return false
	}
	if f.Type != nil && h.Type != *f.Type {
		return false
	}
	if f.Schedulable != nil && h.Schedulable != *f.Schedulable {
		return false
	}
	return true
}
