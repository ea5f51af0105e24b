// Package mcpserver exposes call simulation and analysis as MCP tools.
package mcpserver

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

const serverName = "callcoach"

// Server is the MCP server wrapping a learning-loop runner.
type Server struct {
	mcp *server.MCPServer
	log *slog.Logger
}

// New registers the tools backed by h.
func New(h *Handlers, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(true))

	tools := ToolDefs()
	s.AddTool(tools[0], h.HandleSimulateCall)
	s.AddTool(tools[1], h.HandleAnalyzeTranscript)
	s.AddTool(tools[2], h.HandleGetScript)
	s.AddTool(tools[3], h.HandlePerformanceSummary)

	return &Server{mcp: s, log: logger.With("component", "mcp")}
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.log.Info("mcp server on stdio")
	return server.ServeStdio(s.mcp)
}

// ServeHTTP serves the streamable HTTP transport on addr.
func (s *Server) ServeHTTP(addr string) error {
	s.log.Info("mcp server listening", "addr", addr)
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true)).Start(addr)
}
