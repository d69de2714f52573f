// Package mcpserver exposes the broker's interact_with_terminal
// operation as an agent-facing JSON-RPC tool, per spec.md §4.G.
//
// Grounded on src/mcp/server.go: mcp.NewServer, NewStreamableHTTPHandler
// mounted under /mcp via gin.WrapH, and the LogToolCall logging wrapper.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/term-broker/termbroker/internal/config"
	"github.com/term-broker/termbroker/internal/interact"
)

// Server wraps the official MCP SDK server and mounts it into a shared
// gin engine.
type Server struct {
	mcpServer *mcp.Server
	orch      *interact.Orchestrator
	engine    *gin.Engine
	cfg       config.MCPConfig
}

// NewServer builds the MCP server and registers the broker's agent
// tools and resources, honoring cfg.DisabledTools, cfg.MountPath, and
// cfg.AllowedHosts/EnableDNSRebindingProtection per spec.md §6.
func NewServer(ginEngine *gin.Engine, orch *interact.Orchestrator, cfg config.MCPConfig) (*Server, error) {
	logrus.Info("creating mcp server")

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.ServerName,
			Version: cfg.ServerVers,
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		orch:      orch,
		engine:    ginEngine,
		cfg:       cfg,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("register mcp tools: %w", err)
	}
	s.registerResources()
	s.setupHTTPEndpoints()

	return s, nil
}

// toolDisabled reports whether name appears in cfg.DisabledTools.
func (s *Server) toolDisabled(name string) bool {
	for _, d := range s.cfg.DisabledTools {
		if d == name {
			return true
		}
	}
	return false
}

func (s *Server) mountPath() string {
	p := s.cfg.MountPath
	if p == "" {
		p = "/mcp"
	}
	return strings.TrimSuffix(p, "/")
}

func (s *Server) setupHTTPEndpoints() {
	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
	if s.cfg.EnableDNSRebindingProtection {
		handler = hostValidationHandler(handler, s.cfg.AllowedHosts)
	}

	mount := s.mountPath()
	s.engine.Any(mount+"/*path", gin.WrapH(http.StripPrefix(mount, handler)))
	s.engine.Any(mount, gin.WrapH(handler))

	logrus.Infof("mcp http endpoints configured at %s", mount)
}

// hostValidationHandler rejects requests whose Host header (stripped
// of port where the allow-list entry carries none) is not in
// allowedHosts, guarding against DNS-rebinding attacks against the
// streamable HTTP transport per spec.md §6's
// mcp.enable_dns_rebinding_protection.
func hostValidationHandler(next http.Handler, allowedHosts []string) http.Handler {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[h] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if allowed[host] {
			next.ServeHTTP(w, r)
			return
		}
		if idx := strings.LastIndex(host, ":"); idx >= 0 && allowed[host[:idx]] {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "host not allowed", http.StatusForbidden)
	})
}

// LogToolCall wraps a tool handler with start/duration/error logging,
// matching src/mcp/server.go's generic wrapper.
func LogToolCall[T any, R any](toolName string, handler func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, R, error)) func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, R, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, R, error) {
		start := time.Now()
		logrus.Infof("tool call started: %s", toolName)

		result, output, err := handler(ctx, req, args)

		duration := time.Since(start)
		if err != nil {
			logrus.Errorf("tool call failed: %s (duration: %v, error: %v)", toolName, duration, err)
			if err.Error() == "" {
				err = fmt.Errorf("tool %s failed with unknown error", toolName)
			}
		} else {
			logrus.Infof("tool call completed: %s (duration: %v)", toolName, duration)
		}
		return result, output, err
	}
}
