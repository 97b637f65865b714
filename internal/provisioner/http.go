package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/types"
	"go.uber.org/zap"
)

// HTTPProvisioner talks to the cluster service over its JSON REST API.
type HTTPProvisioner struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// Ensure HTTPProvisioner implements the Provisioner interface
var _ Provisioner = (*HTTPProvisioner)(nil)

// NewHTTPProvisioner creates a provisioner client for the configured
// cluster service endpoint
func NewHTTPProvisioner(cfg *config.Config, logger *zap.Logger) *HTTPProvisioner {
	return &HTTPProvisioner{
		endpoint: cfg.Clusters.Endpoint,
		client:   &http.Client{Timeout: cfg.Clusters.Timeout},
		logger:   logger.Named("provisioner"),
	}
}

type allocatePortsRequest struct {
	HostID types.HostID `json:"host_id"`
	Count  int          `json:"count"`
}

type allocatePortsResponse struct {
	Ports []int `json:"ports"`
}

type createClusterResponse struct {
	ID types.ClusterID `json:"id"`
}

// AllocatePorts reserves API ports on the host through the cluster service
func (p *HTTPProvisioner) AllocatePorts(ctx context.Context, hostID types.HostID, count int) ([]int, error) {
	var resp allocatePortsResponse
	err := p.post(ctx, "/api/v1/ports/allocate", allocatePortsRequest{HostID: hostID, Count: count}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %d ports on host %s: %w", count, hostID, err)
	}
	if len(resp.Ports) < count {
		return nil, fmt.Errorf("host %s has only %d free ports, need %d", hostID, len(resp.Ports), count)
	}
	return resp.Ports, nil
}

// CreateCluster asks the cluster service to build one cluster
func (p *HTTPProvisioner) CreateCluster(ctx context.Context, req CreateRequest) (types.ClusterID, error) {
	var resp createClusterResponse
	if err := p.post(ctx, "/api/v1/clusters", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create cluster %s: %w", req.Name, err)
	}
	return resp.ID, nil
}

// DeleteCluster asks the cluster service to tear one cluster down
func (p *HTTPProvisioner) DeleteCluster(ctx context.Context, id types.ClusterID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.endpoint+"/api/v1/clusters/"+id.String(), nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete cluster %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("failed to delete cluster %s: status %d: %s", id, resp.StatusCode, body)
	}
	return nil
}

// post sends a JSON request and decodes the JSON response into out
func (p *HTTPProvisioner) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
