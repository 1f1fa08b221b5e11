// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/specmem/specmem/application/service"
	"github.com/specmem/specmem/domain/drilldown"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/search"
)

// Searcher provides camera-roll search for MCP tools.
type Searcher interface {
	Search(ctx context.Context, query string, options ...service.ShotOption) (search.Result, error)
}

// Driller expands drilldown handles for MCP tools.
type Driller interface {
	Resolve(ctx context.Context, ref string, options ...service.DrillOption) (service.View, bool, error)
	Memory(ctx context.Context, ref string) (memory.Memory, bool, error)
}

// HandleRegistry looks up live handles for the zoom tool.
type HandleRegistry interface {
	ResolveID(id int) (drilldown.Entry, bool)
}

// Server wraps the MCP server with specmem's memory tools.
type Server struct {
	mcpServer *server.MCPServer
	searcher  Searcher
	driller   Driller
	registry  HandleRegistry
	logger    *slog.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(searcher Searcher, driller Driller, registry HandleRegistry, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		searcher: searcher,
		driller:  driller,
		registry: registry,
		logger:   logger,
	}

	// Create MCP server with server info
	mcpServer := server.NewMCPServer(
		"specmem",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// registerTools registers all specmem tools with the MCP server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	searchTool := mcp.NewTool("search_memory",
		mcp.WithDescription("Search saved memories with camera-roll zoom: wide levels return many short previews, close levels return few full ones. Results carry #N handles for drill_down."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithString("zoom",
			mcp.Description("Zoom level: ultra-wide, wide, normal, close, or macro (default: adaptive)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results for this call"),
		),
	)

	mcpServer.AddTool(searchTool, s.handleSearchMemory)

	drillTool := mcp.NewTool("drill_down",
		mcp.WithDescription("Expand a result handle into full content: the memory with its conversation context, related memories, and code references, or a code definition cut to the content zoom"),
		mcp.WithString("handle",
			mcp.Required(),
			mcp.Description("The numeric handle from a search result"),
		),
		mcp.WithNumber("content_zoom",
			mcp.Description("0-100 content budget for code views (default: 50)"),
		),
		mcp.WithBoolean("include_context",
			mcp.Description("Include surrounding conversation rows (default: true)"),
		),
	)

	mcpServer.AddTool(drillTool, s.handleDrillDown)

	getTool := mcp.NewTool("get_memory_by_id",
		mcp.WithDescription("Fetch one memory by handle or memory id, without the drilldown fan-out"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("A handle number or memory UUID"),
		),
	)

	mcpServer.AddTool(getTool, s.handleGetMemory)

	zoomTool := mcp.NewTool("zoom",
		mcp.WithDescription("Re-run the search behind a handle one zoom step tighter or wider"),
		mcp.WithString("handle",
			mcp.Required(),
			mcp.Description("The numeric handle from a search result"),
		),
		mcp.WithString("direction",
			mcp.Required(),
			mcp.Description(`"in" for a tighter shot, "out" for a wider one`),
		),
	)

	mcpServer.AddTool(zoomTool, s.handleZoom)
}

// handleSearchMemory handles the search_memory tool invocation.
func (s *Server) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	var opts []service.ShotOption
	if zoom := request.GetString("zoom", ""); zoom != "" {
		level := search.ZoomLevel(zoom)
		if !search.ValidZoom(level) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown zoom level: %s", zoom)), nil
		}
		opts = append(opts, service.AtZoom(level))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		opts = append(opts, service.WithShotLimit(limit))
	}

	result, err := s.searcher.Search(ctx, query, opts...)
	if err != nil {
		s.logger.Error("memory search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(result.Render()), nil
}

// handleDrillDown handles the drill_down tool invocation.
func (s *Server) handleDrillDown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("handle")
	if err != nil {
		return mcp.NewToolResultError("handle is required"), nil
	}

	opts := []service.DrillOption{
		service.WithConversationContext(request.GetBool("include_context", true)),
	}
	if zoom := request.GetInt("content_zoom", 0); zoom > 0 {
		opts = append(opts, service.WithDrillZoom(zoom))
	}

	view, ok, err := s.driller.Resolve(ctx, ref, opts...)
	if err != nil {
		s.logger.Error("drilldown failed", slog.String("handle", ref), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("drilldown failed: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("handle %s not found or expired; run search_memory again", ref)), nil
	}

	return mcp.NewToolResultText(view.Render()), nil
}

// handleGetMemory handles the get_memory_by_id tool invocation.
func (s *Server) handleGetMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	mem, ok, err := s.driller.Memory(ctx, id)
	if err != nil {
		s.logger.Error("memory lookup failed", slog.String("id", id), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("memory %s not found", id)), nil
	}

	return mcp.NewToolResultText(renderMemory(mem)), nil
}

// handleZoom handles the zoom tool invocation.
func (s *Server) handleZoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("handle")
	if err != nil {
		return mcp.NewToolResultError("handle is required"), nil
	}

	direction := search.ZoomDirection(request.GetString("direction", ""))
	if direction != search.ZoomIn && direction != search.ZoomOut {
		return mcp.NewToolResultError(`direction must be "in" or "out"`), nil
	}

	id, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid handle: %s", ref)), nil
	}

	entry, ok := s.registry.ResolveID(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("handle %d not found or expired; run search_memory again", id)), nil
	}
	if entry.SearchQuery() == "" {
		return mcp.NewToolResultError(fmt.Sprintf("handle %d did not come from a search; zoom needs a search_memory handle", id)), nil
	}

	current := search.ZoomLevel(entry.ZoomLevel())
	if !search.ValidZoom(current) {
		current = search.ZoomNormal
	}
	next, ok := search.NextZoom(current, direction)
	if !ok {
		if direction == search.ZoomIn {
			return mcp.NewToolResultText(fmt.Sprintf("Already at the narrowest zoom (%s).", current)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Already at the widest zoom (%s).", current)), nil
	}

	result, err := s.searcher.Search(ctx, entry.SearchQuery(), service.AtZoom(next))
	if err != nil {
		s.logger.Error("zoom search failed",
			slog.String("query", entry.SearchQuery()),
			slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("zoom failed: %v", err)), nil
	}

	return mcp.NewToolResultText(result.Render()), nil
}

// renderMemory formats one memory as a quick view.
func renderMemory(mem memory.Memory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[MEMORY %s]\n", mem.ID())
	if role := mem.Role(); role != "" {
		fmt.Fprintf(&b, "Role: %s | ", role)
	}
	fmt.Fprintf(&b, "Date: %s\n", mem.CreatedAt().Format("2006-01-02 15:04"))
	if tags := mem.Tags(); len(tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(tags, ", "))
	}
	b.WriteString("\n" + mem.Content() + "\n")
	b.WriteString("[/MEMORY]")
	return b.String()
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
