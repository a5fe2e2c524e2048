package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/casatester/casatester/pkg/defaults"
	"github.com/casatester/casatester/pkg/history"
)

func (s *Server) registerResources() {
	s.addVersionResource()
	s.addLatestRunResource()
}

func (s *Server) addVersionResource() {
	const uri = "casatester://version"
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         uri,
			Name:        "casatester version",
			Description: "Server version, registered probes and tool inventory.",
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			info := map[string]any{
				"name":    defaults.ToolName,
				"version": defaults.Version,
				"probes":  s.config.Registry.Descriptors(),
				"tools":   []string{"list_probes", "run_assessment", "list_runs", "get_run", "clear_history"},
				"history": s.config.Store != nil,
			}
			data, err := marshalIndent(info)
			if err != nil {
				return nil, fmt.Errorf("marshaling version info: %w", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
			}, nil
		},
	)
}

func (s *Server) addLatestRunResource() {
	const uri = "casatester://runs/latest"
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         uri,
			Name:        "Latest run",
			Description: "The most recently saved assessment run.",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			if s.config.Store == nil {
				return nil, mcp.ResourceNotFoundError(uri)
			}
			id, run, err := history.Latest(ctx, s.config.Store)
			if err != nil {
				return nil, mcp.ResourceNotFoundError(uri)
			}
			data, err := marshalIndent(assessmentResult{ID: id, Saved: true, Run: run})
			if err != nil {
				return nil, fmt.Errorf("marshaling run: %w", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
			}, nil
		},
	)
}
