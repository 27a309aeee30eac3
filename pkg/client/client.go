// Package client is the usagelord SDK: a thin typed wrapper over the
// daemon's HTTP API, shared by the CLI, the TUI, and the MCP server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rmax-ai/usagelord/pkg/provider"
	"github.com/rmax-ai/usagelord/pkg/store"
)

// Client is the usagelord SDK client.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new usagelord client.
// endpoint defaults to "http://127.0.0.1:8095" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8095"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ProviderInfo mirrors the daemon's /v1/providers entries.
type ProviderInfo struct {
	ID        provider.ProviderID `json:"id"`
	Available bool                `json:"available"`
}

// Quotas returns the latest snapshot per provider.
func (c *Client) Quotas(ctx context.Context) ([]provider.UsageSnapshot, error) {
	var snaps []provider.UsageSnapshot
	if err := c.get(ctx, "/v1/quotas", &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// History returns snapshots for one provider over the past sinceHours.
func (c *Client) History(ctx context.Context, pid provider.ProviderID, sinceHours, limit int) ([]provider.UsageSnapshot, error) {
	path := fmt.Sprintf("/v1/quotas/%s/history?since_hours=%d&limit=%d", pid, sinceHours, limit)
	var snaps []provider.UsageSnapshot
	if err := c.get(ctx, path, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Failures returns recent probe failures for one provider.
func (c *Client) Failures(ctx context.Context, pid provider.ProviderID, limit int) ([]store.ProbeFailure, error) {
	path := fmt.Sprintf("/v1/quotas/%s/failures?limit=%d", pid, limit)
	var failures []store.ProbeFailure
	if err := c.get(ctx, path, &failures); err != nil {
		return nil, err
	}
	return failures, nil
}

// Providers lists registered providers and their availability.
func (c *Client) Providers(ctx context.Context) ([]ProviderInfo, error) {
	var infos []ProviderInfo
	if err := c.get(ctx, "/v1/providers", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Healthy reports whether the daemon answers its health check.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.get(ctx, "/v1/health", nil) == nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
