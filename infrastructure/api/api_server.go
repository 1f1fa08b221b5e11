package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/specmem/specmem"
	apimiddleware "github.com/specmem/specmem/infrastructure/api/middleware"
	v1 "github.com/specmem/specmem/infrastructure/api/v1"
	mcpinternal "github.com/specmem/specmem/internal/mcp"
)

// mcpVersion is stamped into the MCP server info at /mcp.
const mcpVersion = "1.0.0"

// APIServer provides an HTTP API backed by a specmem Client.
type APIServer struct {
	client       *specmem.Client
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given specmem Client.
// Every endpoint is read-only; writes go through the library or MCP.
func NewAPIServer(client *specmem.Client) *APIServer {
	return &APIServer{
		client: client,
		logger: client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call
// MountRoutes(). If not called, ListenAndServe creates a default router
// with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all v1 API routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

// mountRoutes wires up all routes on the given router.
func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	searchRouter := v1.NewSearchRouter(c)
	drilldownRouter := v1.NewDrilldownRouter(c)
	memoriesRouter := v1.NewMemoriesRouter(c)
	statsRouter := v1.NewStatsRouter(c)

	router.Get("/healthz", a.health)

	router.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Mount("/search", searchRouter.Routes())
		r.Mount("/drilldown", drilldownRouter.Routes())
		r.Mount("/memories", memoriesRouter.Routes())
		r.Mount("/stats", statsRouter.Routes())
	})

	// MCP (Model Context Protocol) endpoint — no timeout middleware.
	// MCP uses streaming responses and manages its own session state via
	// response headers, which is incompatible with chi's Timeout middleware
	// that wraps the ResponseWriter.
	mcpSrv := mcpinternal.NewServer(c.Search, c.Drilldown, c.Registry(), mcpVersion, a.logger)
	httpHandler := server.NewStreamableHTTPServer(mcpSrv.MCPServer())
	router.Mount("/mcp", httpHandler)
}

func (a *APIServer) health(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"schema": a.client.Schema(),
	})
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger)
	a.server = &server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
