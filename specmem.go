// Package specmem provides a library for persistent assistant memory with
// camera-roll semantic search.
//
// SpecMem stores conversation memories per project, each project isolated
// in its own schema, and retrieves them through zoomable vector search:
// wide shots return many short previews, close-ups return few full ones.
// Every result carries a short numeric handle that can be drilled into
// for conversational context, related memories, and linked code.
//
// Basic usage:
//
//	client, err := specmem.New(
//	    specmem.WithSQLite(".specmem/data.db"),
//	    specmem.WithProjectPath("/home/dev/myproject"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Save a memory
//	mem, err := client.Memories.Save(ctx, memory.NewMemory(
//	    "auth bug was a stale session cache", nil, nil,
//	))
//
//	// Search at a zoom level
//	result, err := client.Search.Search(ctx, "auth bug",
//	    service.AtZoom(search.ZoomClose),
//	)
//
//	// Expand a handle from the result list
//	view, ok, err := client.Drilldown.Resolve(ctx, "3")
package specmem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/specmem/specmem/application/service"
	"github.com/specmem/specmem/domain/drilldown"
	"github.com/specmem/specmem/domain/memory"
	"github.com/specmem/specmem/domain/project"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/infrastructure/compress"
	"github.com/specmem/specmem/infrastructure/dimension"
	"github.com/specmem/specmem/infrastructure/persistence"
	"github.com/specmem/specmem/infrastructure/provider"
	"github.com/specmem/specmem/internal/config"
	"github.com/specmem/specmem/internal/database"
)

// Sentinel errors surfaced by Client methods. Aliased from the service
// layer so callers can match with errors.Is against either package.
var (
	ErrClientClosed = service.ErrClientClosed
	ErrNoDatabase   = service.ErrNoDatabase
)

// Client is the main entry point for the specmem library. It is scoped to
// one project: the schema is resolved from the project path at creation
// and every store and service underneath is bound to it.
//
// Access resources via struct fields:
//
//	client.Search.Search(ctx, "query")
//	client.Drilldown.Resolve(ctx, "3")
//	client.Memories.Save(ctx, mem)
type Client struct {
	// Public resource fields (direct service access)
	Projects  *service.ProjectContext
	Search    *service.CameraSearch
	Drilldown *service.Drilldown
	Queue     *service.EmbeddingQueue
	Memories  memory.Store

	db       database.Database
	registry *drilldown.Registry

	// Internal services
	queue      *service.EmbeddingQueue
	dimensions *dimension.Service

	embedder       search.Embedder
	hugotEmbedding *provider.HugotEmbedding
	closers        []io.Closer

	logger      *slog.Logger
	app         config.AppConfig
	projectPath string
	projectID   string
	schema      string
	closed      atomic.Bool
	mu          sync.Mutex
}

// New creates a new Client with the given options.
// The embedding queue sweeper starts automatically.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	// Set up logger
	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	// Set up data directory
	if err := cfg.app.EnsureDataDir(); err != nil {
		return nil, err
	}

	// Resolve the project and its schema
	projectPath := cfg.app.ProjectPath()
	if projectPath == "" {
		projectPath = project.ActivePath()
	}
	schema := project.SchemaName(projectPath)

	// Resolve the embedding backend before touching the database
	embedder, hugotEmbedding, err := buildEmbedder(cfg, projectPath, logger)
	if err != nil {
		return nil, err
	}

	// Load zoom presets
	presets := cfg.presets
	if presets == nil {
		presets = search.DefaultPresets()
		if path := cfg.app.ZoomConfigPath(); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read zoom config: %w", err)
			}
			presets, err = search.ParsePresets(data)
			if err != nil {
				return nil, fmt.Errorf("parse zoom config %s: %w", path, err)
			}
		}
	}

	// Open database
	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.app.DBURL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Create the project schema and tables
	if err := persistence.Bootstrap(ctx, db, schema, cfg.app.EmbeddingDimensions(), logger); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("bootstrap schema: %w", err), errClose)
	}

	// Create stores
	memoryStore := persistence.NewMemoryStore(db, schema)
	searcher := persistence.NewMemorySearcher(db, schema)
	queueStore := persistence.NewQueueStore(db, schema)
	defStore := persistence.NewCodeDefinitionStore(db, schema)
	fileStore := persistence.NewCodebaseFileStore(db, schema)
	pointerStore := persistence.NewCodebasePointerStore(db, schema)
	projectStore := persistence.NewProjectStore(db)

	// Register the project row. Failure is survivable: queue rows lose
	// their project scoping but everything schema-bound still works.
	projects := service.NewProjectContext(logger)
	projects.Attach(db, projectStore)
	projects.Pin(projectPath)
	var projectID string
	if proj, err := projects.RegisterProject(ctx); err != nil {
		logger.Warn("project registration failed, queue rows will be unscoped",
			slog.String("path", projectPath),
			slog.Any("error", err))
	} else {
		projectID = proj.ID()
	}

	// Dimension bookkeeping between the embedder and the vector column
	dimensions := dimension.NewService(db, schema,
		dimension.WithOverride(cfg.app.EmbeddingDimensions()),
		dimension.WithTTL(cfg.app.DimensionCacheTTL()),
		dimension.WithLogger(logger))
	adapter := dimension.NewAdapter(dimensions,
		dimension.WithEmbedder(embedder),
		dimension.WithAdapterLogger(logger))

	// Optional sidecar backends: rescoring and preview translation
	rescorer := cfg.rescorer
	if rescorer == nil {
		if addr := rescoreAddr(cfg, projectPath); addr != "" {
			rescorer = provider.NewRescoreSocket(addr)
		}
	}
	scorer := service.NewMiniCOTScorer(rescorer, logger,
		service.WithVectorWeight(cfg.app.VectorWeight()))

	compressor := cfg.compressor
	if compressor == nil {
		if addr := translateAddr(cfg, projectPath); addr != "" {
			compressor = compress.NewTranslateCompressor(provider.NewTranslateSocket(addr))
		} else {
			compressor = compress.NoopCompressor{}
		}
	}

	// Drilldown handle registry (starts its sweeper)
	dcfg := cfg.app.Drilldown()
	registry := drilldown.NewRegistry(
		drilldown.WithMaxEntries(dcfg.MaxSize()),
		drilldown.WithTTL(dcfg.TTL()),
		drilldown.WithSweepInterval(dcfg.SweepInterval()),
		drilldown.WithLogger(logger))

	// Create application services
	adaptive := service.NewAdaptiveSearch(memoryStore, logger)
	cameraSearch := service.NewCameraSearch(searcher, embedder, adaptive, registry, memoryStore, logger,
		service.WithDimensionAdapter(adapter),
		service.WithScorer(scorer),
		service.WithCompressor(compressor),
		service.WithZoomPresets(presets))
	drilldownSvc := service.NewDrilldown(registry, memoryStore, searcher, defStore, fileStore, pointerStore, logger)
	queue := service.NewEmbeddingQueue(queueStore, projectID, cfg.app.Queue(), logger)

	client := &Client{
		db:             db,
		registry:       registry,
		queue:          queue,
		dimensions:     dimensions,
		embedder:       embedder,
		hugotEmbedding: hugotEmbedding,
		closers:        cfg.closers,
		logger:         logger,
		app:            cfg.app,
		projectPath:    projectPath,
		projectID:      projectID,
		schema:         schema,
	}

	// Initialize service fields directly
	client.Projects = projects
	client.Search = cameraSearch
	client.Drilldown = drilldownSvc
	client.Queue = queue
	client.Memories = memoryStore

	// Start the ticket sweeper
	queue.Start(ctx)

	logger.Info("specmem client ready",
		slog.String("project", projectPath),
		slog.String("schema", schema))
	return client, nil
}

// Close releases all resources and stops the background sweepers.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Stop the queue sweeper and the handle registry
	c.queue.Stop()
	c.registry.Shutdown()

	// Close built-in embedding provider
	if c.hugotEmbedding != nil {
		if err := c.hugotEmbedding.Close(); err != nil {
			c.logger.Error("failed to close embedding model", slog.Any("error", err))
		}
	}

	// Close registered resources
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	// Close the database
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("specmem client closed")
	return nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Config returns the resolved application config.
func (c *Client) Config() config.AppConfig {
	return c.app
}

// ProjectPath returns the project this client is bound to.
func (c *Client) ProjectPath() string {
	return c.projectPath
}

// Schema returns the per-project schema name.
func (c *Client) Schema() string {
	return c.schema
}

// Registry exposes the drilldown handle registry, for callers that walk
// handles directly (the MCP zoom tool re-runs a handle's search at a new
// level).
func (c *Client) Registry() *drilldown.Registry {
	return c.registry
}

// Stats snapshots one client's footprint.
type Stats struct {
	ProjectPath string
	ProjectID   string
	Schema      string
	Memories    int64
	Embedded    int64
	Queue       service.QueueStats
	Handles     drilldown.Stats
}

// Stats reports memory counts, queue depth, and live handles.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	if c.closed.Load() {
		return Stats{}, ErrClientClosed
	}

	total, err := c.Memories.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count memories: %w", err)
	}
	embedded, err := c.Memories.CountWithEmbeddings(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count embedded memories: %w", err)
	}
	queueStats, err := c.queue.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}

	return Stats{
		ProjectPath: c.projectPath,
		ProjectID:   c.projectID,
		Schema:      c.schema,
		Memories:    total,
		Embedded:    embedded,
		Queue:       queueStats,
		Handles:     c.registry.Stats(),
	}, nil
}

// DrainQueue embeds every pending queue entry with the client's own
// embedding backend and resolves any tickets still waiting on them.
func (c *Client) DrainQueue(ctx context.Context) (service.DrainResult, error) {
	if c.closed.Load() {
		return service.DrainResult{}, ErrClientClosed
	}
	return c.queue.Drain(ctx, c.embedder.Embed)
}

// DimensionReport reconciles the cached vector dimensions against the
// live table columns and returns what it found.
func (c *Client) DimensionReport(ctx context.Context) (*dimension.Report, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.dimensions.SyncTableDimensions(ctx)
}

// buildEmbedder resolves the embedding backend: an explicit override, a
// configured socket or API endpoint, the project's conventional sidecar
// socket, then the built-in local model. The second return is non-nil
// only when the built-in model was chosen, so Close can release it.
func buildEmbedder(cfg *clientConfig, projectPath string, logger *slog.Logger) (search.Embedder, *provider.HugotEmbedding, error) {
	if cfg.embedder != nil {
		return cfg.embedder, nil, nil
	}

	if ep := cfg.app.EmbeddingEndpoint(); ep != nil {
		if ep.SocketPath() != "" {
			logger.Info("using embedding socket", slog.String("path", ep.SocketPath()))
			return provider.NewEmbeddingSocket(ep.SocketPath(), socketOptions(ep)...), nil, nil
		}
		if ep.BaseURL() != "" || ep.Model() != "" {
			logger.Info("using OpenAI-compatible embedding API", slog.String("model", ep.Model()))
			return provider.NewOpenAIProviderFromConfig(provider.OpenAIConfig{
				APIKey:         ep.APIKey(),
				BaseURL:        ep.BaseURL(),
				EmbeddingModel: ep.Model(),
				Timeout:        ep.Timeout(),
				CacheDir:       filepath.Join(cfg.app.DataDir(), "embedcache"),
				MaxRetries:     ep.MaxRetries(),
				InitialDelay:   ep.InitialDelay(),
				BackoffFactor:  ep.BackoffFactor(),
			}), nil, nil
		}
	}

	if addr := project.EmbeddingSocketPath(projectPath); socketExists(addr) {
		logger.Info("using embedding socket", slog.String("path", addr))
		return provider.NewEmbeddingSocket(addr), nil, nil
	}

	modelDir := cfg.modelDir
	if modelDir == "" {
		modelDir = filepath.Join(cfg.app.DataDir(), "models")
	}
	hugot := provider.NewHugotEmbedding(modelDir)
	if hugot.Available() {
		logger.Info("built-in embedding model enabled", slog.String("model_dir", modelDir))
		return hugot, hugot, nil
	}

	return nil, nil, fmt.Errorf("no embedding backend: no model in %s and no socket at %s — configure SPECMEM_EMBEDDING_SOCKET_PATH or SPECMEM_EMBEDDING_MODEL, or place model files in the model dir", modelDir, project.EmbeddingSocketPath(projectPath))
}

// rescoreAddr returns the rescoring socket address, or "" when none is
// configured and none exists at the conventional path.
func rescoreAddr(cfg *clientConfig, projectPath string) string {
	if ep := cfg.app.RescoreEndpoint(); ep != nil && ep.SocketPath() != "" {
		return ep.SocketPath()
	}
	if addr := project.RescoreSocketPath(projectPath); socketExists(addr) {
		return addr
	}
	return ""
}

// translateAddr returns the translation socket address, or "" when none
// is configured and none exists at the conventional path.
func translateAddr(cfg *clientConfig, projectPath string) string {
	if ep := cfg.app.TranslateEndpoint(); ep != nil && ep.SocketPath() != "" {
		return ep.SocketPath()
	}
	if addr := project.TranslateSocketPath(projectPath); socketExists(addr) {
		return addr
	}
	return ""
}

// socketExists reports whether a Unix socket is present at path. A plain
// file at the path is not a socket and does not count.
func socketExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSocket != 0
}

// socketOptions maps endpoint config onto socket client options.
func socketOptions(ep *config.Endpoint) []provider.SocketOption {
	var opts []provider.SocketOption
	if ep.Timeout() > 0 {
		opts = append(opts, provider.WithIOTimeout(ep.Timeout()))
	}
	if ep.MaxRetries() > 0 {
		opts = append(opts, provider.WithSocketRetries(ep.MaxRetries(), ep.InitialDelay()))
	}
	return opts
}
