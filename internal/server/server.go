// Package server wraps the MCP SDK server. It records tool names at
// registration time so tools can be filtered at startup, and instruments
// every handler with structured logging and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thegrumpylion/gdocs-mcp/internal/logging"
	"github.com/thegrumpylion/gdocs-mcp/internal/metrics"
)

// BoolPtr returns a pointer to a bool value. Useful for MCP ToolAnnotations
// fields like DestructiveHint and OpenWorldHint which are *bool.
func BoolPtr(v bool) *bool { return &v }

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name     string
	ReadOnly bool
}

// Options configures a Server. Both fields are optional.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// Server wraps an mcp.Server. Use AddTool to register tools, then call
// ApplyFilter to remove the ones that should not be exposed.
type Server struct {
	*mcp.Server
	tools   []ToolInfo
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New creates a Server wrapper around an mcp.Server.
func New(impl *mcp.Implementation, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		Server:  mcp.NewServer(impl, nil),
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Tools returns the metadata for all registered tools.
func (s *Server) Tools() []ToolInfo {
	return s.tools
}

// AddTool registers a typed tool on the server and records its metadata.
// This is a free generic function because Go does not allow generic methods
// on types, the same pattern the MCP SDK uses for mcp.AddTool.
func AddTool[In, Out any](s *Server, t *mcp.Tool, h mcp.ToolHandlerFor[In, Out]) {
	s.tools = append(s.tools, ToolInfo{
		Name:     t.Name,
		ReadOnly: t.Annotations != nil && t.Annotations.ReadOnlyHint,
	})
	mcp.AddTool(s.Server, t, instrument(s, t.Name, h))
}

// instrument logs each call of h and records its outcome and latency.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	logger := logging.WithTool(s.logger, name)
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		res, out, err := h(ctx, req, in)
		elapsed := time.Since(start)

		status := logging.StatusSuccess
		if err != nil || (res != nil && res.IsError) {
			status = logging.StatusError
		}
		s.metrics.ObserveToolCall(name, status, elapsed)

		if status == logging.StatusError {
			logger.Error("tool call failed", logging.Status(status), logging.Duration(elapsed), logging.Err(err))
		} else {
			logger.Info("tool call", logging.Status(status), logging.Duration(elapsed))
		}
		return res, out, err
	}
}

// ToolFilter configures which tools are exposed by an MCP server.
type ToolFilter struct {
	// Enable is a whitelist of tool names to expose. Mutually exclusive with Disable.
	Enable []string
	// Disable is a blacklist of tool names to hide. Mutually exclusive with Enable.
	Disable []string
}

// ApplyFilter removes tools from the server based on the filter configuration.
// Returns an error if the filter is invalid (enable and disable both set, or
// referencing unknown tool names).
func (s *Server) ApplyFilter(filter ToolFilter) error {
	if len(filter.Enable) > 0 && len(filter.Disable) > 0 {
		return fmt.Errorf("--enable and --disable are mutually exclusive")
	}

	known := make(map[string]bool, len(s.tools))
	for _, t := range s.tools {
		known[t.Name] = true
	}
	for _, name := range append(append([]string(nil), filter.Enable...), filter.Disable...) {
		if !known[name] {
			return fmt.Errorf("unknown tool %q", name)
		}
	}

	var remove []string
	switch {
	case len(filter.Enable) > 0:
		enabled := make(map[string]bool, len(filter.Enable))
		for _, name := range filter.Enable {
			enabled[name] = true
		}
		for _, t := range s.tools {
			if !enabled[t.Name] {
				remove = append(remove, t.Name)
			}
		}
	case len(filter.Disable) > 0:
		remove = filter.Disable
	}
	if len(remove) == 0 {
		return nil
	}

	s.RemoveTools(remove...)
	drop := make(map[string]bool, len(remove))
	for _, name := range remove {
		drop[name] = true
	}
	kept := s.tools[:0]
	for _, t := range s.tools {
		if !drop[t.Name] {
			kept = append(kept, t)
		}
	}
	s.tools = kept
	s.logger.Debug("tools filtered", slog.Any("removed", remove))
	return nil
}
