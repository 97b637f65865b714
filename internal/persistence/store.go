package persistence

import (
	"context"

	"github.com/hostyard/hostyard/internal/models"
)

// ReturnDoc selects which version of the record FindOneAndUpdate returns.
type ReturnDoc int

const (
	// ReturnBefore returns the record as it was before the mutation
	ReturnBefore ReturnDoc = iota
	// ReturnAfter returns the record with the mutation applied
	ReturnAfter
)

// Store defines the interface for the host store. Implementations must make
// FindOneAndUpdate atomic: no concurrent writer may interleave between the
// match and the write.
type Store interface {
	// Insert adds a new host record.
	// Returns ErrDuplicateKey when the ID is already present.
	Insert(ctx context.Context, host *models.Host) error

	// FindOne returns the first host matching the filter, or ErrNotFound.
	FindOne(ctx context.Context, filter models.HostFilter) (*models.Host, error)

	// Find returns all hosts matching the filter, ordered by creation time.
	Find(ctx context.Context, filter models.HostFilter) ([]*models.Host, error)

	// FindOneAndUpdate atomically applies the mutation to the first host
	// matching the filter and returns the record before or after the change.
	// Returns ErrNotFound when nothing matches.
	FindOneAndUpdate(ctx context.Context, filter models.HostFilter, mutation models.HostMutation, ret ReturnDoc) (*models.Host, error)

	// DeleteOne removes the first host matching the filter, or ErrNotFound.
	DeleteOne(ctx context.Context, filter models.HostFilter) error

	// Close cleans up resources used by the store
	Close() error
}
