package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerResources exposes read-only views of broker state as MCP
// resources, per spec.md §4.G's resource surface: the session list, a
// per-session output snapshot (by name), and aggregate registry stats.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "terminal://sessions",
		Name:        "terminal-sessions",
		Description: "Snapshot of every known terminal session",
		MIMEType:    "application/json",
	}, s.readSessionsResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "terminal://stats",
		Name:        "terminal-stats",
		Description: "Aggregate terminal registry counts",
		MIMEType:    "application/json",
	}, s.readStatsResource)

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "terminal://output/{name}",
		Name:        "terminal-output",
		Description: "Retained output text for one terminal session, addressed by name or id",
		MIMEType:    "text/plain",
	}, s.readOutputResource)
}

const outputResourcePrefix = "terminal://output/"

func (s *Server) readOutputResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	name := strings.TrimPrefix(uri, outputResourcePrefix)
	sess, err := s.orch.Registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	latest := sess.Buffer().GetLatest(0)
	var b strings.Builder
	for i, e := range latest {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Content)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "text/plain", Text: b.String()},
		},
	}, nil
}

func (s *Server) readSessionsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	infos := s.orch.ListTerminals()
	summaries := make([]TerminalSummary, 0, len(infos))
	for _, info := range infos {
		summaries = append(summaries, TerminalSummary{
			Name:      info.Name,
			ID:        info.ID,
			Status:    string(info.Status),
			Shell:     info.Shell,
			Cwd:       info.Cwd,
			HasPrompt: info.HasPrompt,
		})
	}
	payload, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("marshal sessions resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: "terminal://sessions", MIMEType: "application/json", Text: string(payload)},
		},
	}, nil
}

func (s *Server) readStatsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	stats := s.orch.Registry.Stats()
	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("marshal stats resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: "terminal://stats", MIMEType: "application/json", Text: string(payload)},
		},
	}, nil
}
