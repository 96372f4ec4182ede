// Package mcpserver implements the Transport & Framing (C1) and Tool
// Dispatcher (C2) components: a newline-framed JSON-RPC stdio server
// built on github.com/mark3labs/mcp-go, exactly as the teacher's
// index/mcp_server.go wires up its own tool set. mcp-go owns stdin/stdout
// framing; taskgate's diagnostic logger is configured exclusively for
// stderr (internal/logger), so the two channels never collide.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ternarybob/taskgate/internal/orchestrator"
)

// Server wraps the mark3labs/mcp-go server with taskgate's tool set.
type Server struct {
	mcp *server.MCPServer
}

// New builds the MCP server and registers every operation in spec.md §6:
// check_agent_availability, analyze_project, set_active_project,
// get_system_status, delegate_coding_task, monitor_task_progress,
// get_task_results, list_active_tasks, cancel_task.
func New(orch *orchestrator.Orchestrator) *Server {
	mcpServer := server.NewMCPServer(
		"taskgate",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	registerTools(mcpServer, orch)

	return &Server{mcp: mcpServer}
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout until the
// client closes stdin or an unrecoverable transport error occurs.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
