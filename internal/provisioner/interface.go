package provisioner

import (
	"context"

	"github.com/hostyard/hostyard/internal/types"
)

// CreateRequest carries everything the cluster subsystem needs to build
// one cluster on a host.
type CreateRequest struct {
	HostID          types.HostID `json:"host_id"`
	Name            string       `json:"name"`
	APIPort         int          `json:"api_port"`
	ConsensusPlugin string       `json:"consensus_plugin"`
	ConsensusMode   string       `json:"consensus_mode"`
	Size            int          `json:"size"`
}

// Provisioner defines the operations the host manager needs from the
// cluster subsystem. Creating a cluster records its ID on the host, and
// deleting one removes it; both happen on the provisioner's side of the
// boundary.
type Provisioner interface {
	// AllocatePorts reserves count API ports on the host and returns them.
	AllocatePorts(ctx context.Context, hostID types.HostID, count int) ([]int, error)

	// CreateCluster builds one cluster and returns its ID.
	CreateCluster(ctx context.Context, req CreateRequest) (types.ClusterID, error)

	// DeleteCluster tears one cluster down.
	DeleteCluster(ctx context.Context, id types.ClusterID) error
}
