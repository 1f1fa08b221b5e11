package specmem

import (
	"io"
	"log/slog"

	"github.com/specmem/specmem/application/service"
	"github.com/specmem/specmem/domain/search"
	"github.com/specmem/specmem/infrastructure/compress"
	"github.com/specmem/specmem/infrastructure/provider"
	"github.com/specmem/specmem/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	app        config.AppConfig
	logger     *slog.Logger
	embedder   search.Embedder
	rescorer   service.Rescorer
	compressor compress.Compressor
	presets    search.Presets
	modelDir   string
	closers    []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
// This ensures all defaults come from the single source of truth.
func newClientConfig() *clientConfig {
	return &clientConfig{app: config.NewAppConfig()}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite configures SQLite as the database. Vector search runs
// in-process over JSON-array embedding columns.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDBURL("sqlite:///" + path))
	}
}

// WithPostgres configures PostgreSQL with the pgvector extension.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDBURL(dsn))
	}
}

// WithConfig replaces the whole application config. Options applied after
// this one still take effect on top of it.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) { c.app = cfg }
}

// WithDataDir sets the data directory for the database and model files.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDataDir(dir))
	}
}

// WithProjectPath pins the project whose schema all operations target.
// Without it the SPECMEM_PROJECT_PATH environment variable decides, then
// the working directory.
func WithProjectPath(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithProjectPath(path))
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithEmbedder sets a custom embedding backend, bypassing the
// socket/OpenAI/local-model resolution chain.
func WithEmbedder(e search.Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithOpenAI sets an OpenAI-compatible API as the embedding backend.
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		c.embedder = provider.NewOpenAIProvider(apiKey)
	}
}

// WithOpenAIConfig sets an OpenAI-compatible embedding backend with
// custom configuration.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		c.embedder = provider.NewOpenAIProviderFromConfig(cfg)
	}
}

// WithEmbeddingSocket sets the Unix socket of the sidecar embedding
// service.
func WithEmbeddingSocket(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithEmbeddingEndpoint(
			config.NewEndpointWithOptions(config.WithSocketPath(path))))
	}
}

// WithRescoreSocket sets the Unix socket of the Mini-COT rescoring
// service. Without one, search results keep their similarity ordering.
func WithRescoreSocket(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithRescoreEndpoint(
			config.NewEndpointWithOptions(config.WithSocketPath(path))))
	}
}

// WithTranslateSocket sets the Unix socket of the translation service
// used for full preview compression.
func WithTranslateSocket(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithTranslateEndpoint(
			config.NewEndpointWithOptions(config.WithSocketPath(path))))
	}
}

// WithRescorer sets a custom rescoring backend.
func WithRescorer(r service.Rescorer) Option {
	return func(c *clientConfig) { c.rescorer = r }
}

// WithCompressor sets a custom preview compression codec.
func WithCompressor(codec compress.Compressor) Option {
	return func(c *clientConfig) { c.compressor = codec }
}

// WithZoomPresets overrides the built-in zoom table.
func WithZoomPresets(presets search.Presets) Option {
	return func(c *clientConfig) { c.presets = presets }
}

// WithQueueConfig sets the embedding overflow queue config.
func WithQueueConfig(q config.QueueConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithQueueConfig(q))
	}
}

// WithDrilldownConfig sets the drilldown handle registry config.
func WithDrilldownConfig(d config.DrilldownConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDrilldownConfig(d))
	}
}

// WithVectorWeight sets the similarity weight in hybrid rescoring.
func WithVectorWeight(w float64) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithVectorWeight(w))
	}
}

// WithEmbeddingDimensions pins the vector column width instead of probing
// the database for it.
func WithEmbeddingDimensions(dims int) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithEmbeddingDimensions(dims))
	}
}

// WithModelDir sets the directory where built-in model files are stored.
// Defaults to {dataDir}/models if not specified.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) { c.modelDir = dir }
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(closer io.Closer) Option {
	return func(c *clientConfig) { c.closers = append(c.closers, closer) }
}
