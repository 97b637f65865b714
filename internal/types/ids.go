package types

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Common errors for ID validation
var (
	ErrEmptyID = errors.New("ID cannot be empty")
)

// HostID is a typed wrapper for host identifiers
type HostID string

// ClusterID is a typed wrapper for cluster identifiers
type ClusterID string

// NewHostID creates a HostID from a string.
// Returns an error if the ID would be empty.
func NewHostID(id string) (HostID, error) {
	cleanID := strings.TrimSpace(id)
	if cleanID == "" {
		return "", ErrEmptyID
	}
	return HostID(cleanID), nil
}

// IsValid returns true if the host ID is valid (not empty)
func (h HostID) IsValid() bool {
	return h != ""
}

// String returns the raw host ID
func (h HostID) String() string {
	return string(h)
}

func (h HostID) ZapField() zap.Field {
	if !h.IsValid() {
		return zap.Skip()
	}
	return zap.String("hostID", string(h))
}

// GenerateHostID creates a new random host ID
func GenerateHostID() HostID {
	return HostID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// NewClusterID creates a ClusterID from a string.
// Returns an error if the ID would be empty.
func NewClusterID(id string) (ClusterID, error) {
	cleanID := strings.TrimSpace(id)
	if cleanID == "" {
		return "", ErrEmptyID
	}
	return ClusterID(cleanID), nil
}

// IsValid returns true if the cluster ID is valid (not empty)
func (c ClusterID) IsValid() bool {
	return c != ""
}

// String returns the raw cluster ID
func (c ClusterID) String() string {
	return string(c)
}

func (c ClusterID) ZapField() zap.Field {
	if !c.IsValid() {
		return zap.Skip()
	}
	return zap.String("clusterID", string(c))
}

// GenerateClusterID creates a new random cluster ID
func GenerateClusterID() ClusterID {
	return ClusterID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
