package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/hostyard/hostyard/internal/models"
	"github.com/hostyard/hostyard/internal/types"
)

// memoryStore provides an in-memory implementation of Store. Used for
// tests and for running the service without external dependencies.
type memoryStore struct {
	mu    sync.RWMutex
	hosts map[types.HostID]*models.Host
}

// newMemoryStore creates a new in-memory host store
func newMemoryStore() *memoryStore {
	return &memoryStore{
		hosts: make(map[types.HostID]*models.Host),
	}
}

// NewMemoryStore creates an in-memory Store for callers outside the fx
// wiring, such as tests of packages built on top of the store.
func NewMemoryStore() Store {
	return newMemoryStore()
}

// Insert adds a new host record
func (m *memoryStore) Insert(ctx context.Context, host *models.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.hosts[host.ID]; exists {
		return ErrDuplicateKey
	}
	m.hosts[host.ID] = host.Clone()
	return nil
}

// FindOne returns the first host matching the filter
func (m *memoryStore) FindOne(ctx context.Context, filter models.HostFilter) (*models.Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	host := m.matchOne(filter)
	if host == nil {
		return nil, ErrNotFound
	}
	return host.Clone(), nil
}

// Find returns all hosts matching the filter, ordered by creation time
func (m *memoryStore) Find(ctx context.Context, filter models.HostFilter) ([]*models.Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Host, 0)
	for _, host := range m.hosts {
		if filter.Matches(host) {
			result = append(result, host.Clone())
		}
	}
	sortHosts(result)
	return result, nil
}

// FindOneAndUpdate atomically applies the mutation to the first matching host
func (m *memoryStore) FindOneAndUpdate(ctx context.Context, filter models.HostFilter, mutation models.HostMutation, ret ReturnDoc) (*models.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	host := m.matchOne(filter)
	if host == nil {
		return nil, ErrNotFound
	}

	before := host.Clone()
	mutation.Apply(host)

	if ret == ReturnBefore {
		return before, nil
	}
	return host.Clone(), nil
}

// DeleteOne removes the first host matching the filter
func (m *memoryStore) DeleteOne(ctx context.Context, filter models.HostFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	host := m.matchOne(filter)
	if host == nil {
		return ErrNotFound
	}
	delete(m.hosts, host.ID)
	return nil
}

// Close is a no-op for in-memory store
func (m *memoryStore) Close() error {
	return nil
}

// matchOne returns the stored record (not a copy) for the first match in
// creation order. Callers must hold the lock.
func (m *memoryStore) matchOne(filter models.HostFilter) *models.Host {
	// Direct lookup when filtering by ID
	if filter.ID != nil {
		host, exists := m.hosts[*filter.ID]
		if !exists || !filter.Matches(host) {
			return nil
		}
		return host
	}

	var candidates []*models.Host
	for _, host := range m.hosts {
		if filter.Matches(host) {
			candidates = append(candidates, host)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sortHosts(candidates)
	return candidates[0]
}

// sortHosts orders hosts by creation time, breaking ties by ID so listings
// are stable.
func sortHosts(hosts []*models.Host) {
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].CreatedAt.Equal(hosts[j].CreatedAt) {
			return hosts[i].ID < hosts[j].ID
		}
		return hosts[i].CreatedAt.Before(hosts[j].CreatedAt)
	})
}
