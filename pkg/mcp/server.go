// Package mcp adapts usagelord-d to the Model Context Protocol so agents
// can check their own remaining quota before starting expensive work.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/usagelord/pkg/client"
	"github.com/rmax-ai/usagelord/pkg/provider"
)

// Server adapts usagelord-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"usagelord",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// usagelord://quotas
	s.mcpServer.AddResource(mcp.NewResource(
		"usagelord://quotas",
		"Current Usage Quotas",
		mcp.WithResourceDescription("Latest remaining usage quota per AI CLI provider"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadQuotas)

	// usagelord://providers
	s.mcpServer.AddResource(mcp.NewResource(
		"usagelord://providers",
		"Registered Providers",
		mcp.WithResourceDescription("Providers the daemon probes and whether their CLI is installed"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadProviders)
}

// --- Tools ---

func (s *Server) registerTools() {
	// check_quota
	s.mcpServer.AddTool(mcp.NewTool(
		"check_quota",
		mcp.WithDescription("Check how much usage quota remains for an AI CLI provider. Returns the latest probed percentages."),
		mcp.WithString("provider_id", mcp.Required(), mcp.Description("The provider to check (e.g., 'codex', 'claude')")),
	), s.handleCheckQuota)
}

// --- Handlers ---

func (s *Server) handleReadQuotas(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snaps, err := s.apiClient.Quotas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotas: %w", err)
	}

	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quotas: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadProviders(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	infos, err := s.apiClient.Providers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch providers: %w", err)
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal providers: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCheckQuota(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid := provider.ProviderID(mcp.ParseString(request, "provider_id", ""))
	if pid == "" {
		return mcp.NewToolResultError("provider_id is required"), nil
	}

	snaps, err := s.apiClient.Quotas(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	for _, snap := range snaps {
		if snap.ProviderID != pid {
			continue
		}
		var lines []string
		for _, q := range snap.Quotas {
			line := fmt.Sprintf("%s: %.0f%% remaining", q.QuotaType, q.PercentRemaining)
			if q.ResetText != "" {
				line += " (" + q.ResetText + ")"
			}
			lines = append(lines, line)
		}
		msg := fmt.Sprintf("Provider: %s\nCaptured: %s\n%s",
			pid, snap.CapturedAt.Format("2006-01-02 15:04:05 MST"), strings.Join(lines, "\n"))
		return mcp.NewToolResultText(msg), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("No snapshot recorded for provider %q yet", pid)), nil
}
