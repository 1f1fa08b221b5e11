// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 8080
	DefaultLogLevel = "INFO"

	DefaultSearchLimit  = 15
	DefaultVectorWeight = 0.4

	DefaultDimensionCacheTTL = 5 * time.Minute

	DefaultQueueMaxSize         = 500
	DefaultQueueMaxAge          = 5 * time.Minute
	DefaultQueueCleanupInterval = time.Minute
	DefaultQueueClaimBatch      = 10
	DefaultQueueRetention       = 7 * 24 * time.Hour

	DefaultDrilldownMaxSize       = 10000
	DefaultDrilldownTTL           = 30 * time.Minute
	DefaultDrilldownSweepInterval = 5 * time.Minute

	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures an embedding, rescoring or translation backend.
// A backend is reached either over HTTP (BaseURL) or a local Unix
// socket (SocketPath).
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	socketPath    string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoffFactor,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// SocketPath returns the Unix socket path.
func (e Endpoint) SocketPath() string { return e.socketPath }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// IsConfigured returns true if the endpoint has a reachable backend.
func (e Endpoint) IsConfigured() bool {
	return e.model != "" || e.socketPath != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithSocketPath sets the Unix socket path.
func WithSocketPath(path string) EndpointOption {
	return func(e *Endpoint) { e.socketPath = path }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// QueueConfig configures the embedding overflow queue.
type QueueConfig struct {
	maxSize         int
	maxAge          time.Duration
	cleanupInterval time.Duration
	claimBatch      int
	retention       time.Duration
}

// NewQueueConfig creates a new QueueConfig with defaults.
func NewQueueConfig() QueueConfig {
	return QueueConfig{
		maxSize:         DefaultQueueMaxSize,
		maxAge:          DefaultQueueMaxAge,
		cleanupInterval: DefaultQueueCleanupInterval,
		claimBatch:      DefaultQueueClaimBatch,
		retention:       DefaultQueueRetention,
	}
}

// MaxSize returns the maximum number of pending entries.
func (q QueueConfig) MaxSize() int { return q.maxSize }

// MaxAge returns how long a caller waits for its entry before expiry.
func (q QueueConfig) MaxAge() time.Duration { return q.maxAge }

// CleanupInterval returns how often expired waiters are swept.
func (q QueueConfig) CleanupInterval() time.Duration { return q.cleanupInterval }

// ClaimBatch returns how many entries a drain pass claims at once.
func (q QueueConfig) ClaimBatch() int { return q.claimBatch }

// Retention returns how long terminal entries are kept before cleanup.
func (q QueueConfig) Retention() time.Duration { return q.retention }

// WithMaxSize returns a new config with the specified queue capacity.
func (q QueueConfig) WithMaxSize(n int) QueueConfig {
	if n > 0 {
		q.maxSize = n
	}
	return q
}

// WithMaxAge returns a new config with the specified waiter lifetime.
func (q QueueConfig) WithMaxAge(d time.Duration) QueueConfig {
	if d > 0 {
		q.maxAge = d
	}
	return q
}

// WithCleanupInterval returns a new config with the specified sweep interval.
func (q QueueConfig) WithCleanupInterval(d time.Duration) QueueConfig {
	if d > 0 {
		q.cleanupInterval = d
	}
	return q
}

// WithClaimBatch returns a new config with the specified drain batch size.
func (q QueueConfig) WithClaimBatch(n int) QueueConfig {
	if n > 0 {
		q.claimBatch = n
	}
	return q
}

// WithRetention returns a new config with the specified terminal-row retention.
func (q QueueConfig) WithRetention(d time.Duration) QueueConfig {
	if d > 0 {
		q.retention = d
	}
	return q
}

// DrilldownConfig configures the drilldown handle registry.
type DrilldownConfig struct {
	maxSize       int
	ttl           time.Duration
	sweepInterval time.Duration
}

// NewDrilldownConfig creates a new DrilldownConfig with defaults.
func NewDrilldownConfig() DrilldownConfig {
	return DrilldownConfig{
		maxSize:       DefaultDrilldownMaxSize,
		ttl:           DefaultDrilldownTTL,
		sweepInterval: DefaultDrilldownSweepInterval,
	}
}

// MaxSize returns the maximum number of registered handles.
func (d DrilldownConfig) MaxSize() int { return d.maxSize }

// TTL returns how long an untouched handle survives.
func (d DrilldownConfig) TTL() time.Duration { return d.ttl }

// SweepInterval returns how often expired handles are swept.
func (d DrilldownConfig) SweepInterval() time.Duration { return d.sweepInterval }

// WithMaxSize returns a new config with the specified registry capacity.
func (d DrilldownConfig) WithMaxSize(n int) DrilldownConfig {
	if n > 0 {
		d.maxSize = n
	}
	return d
}

// WithTTL returns a new config with the specified handle lifetime.
func (d DrilldownConfig) WithTTL(ttl time.Duration) DrilldownConfig {
	if ttl > 0 {
		d.ttl = ttl
	}
	return d
}

// WithSweepInterval returns a new config with the specified sweep interval.
func (d DrilldownConfig) WithSweepInterval(interval time.Duration) DrilldownConfig {
	if interval > 0 {
		d.sweepInterval = interval
	}
	return d
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host              string
	port              int
	dataDir           string
	dbURL             string
	projectPath       string
	logLevel          string
	logFormat         LogFormat
	embeddingDims     int
	dimensionCacheTTL time.Duration
	queue             QueueConfig
	drilldown         DrilldownConfig
	embeddingEndpoint *Endpoint
	rescoreEndpoint   *Endpoint
	translateEndpoint *Endpoint
	vectorWeight      float64
	searchLimit       int
	zoomConfigPath    string
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".specmem"
	}
	return filepath.Join(home, ".specmem")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:              DefaultHost,
		port:              DefaultPort,
		dataDir:           dataDir,
		dbURL:             "sqlite:///" + filepath.Join(dataDir, "specmem.db"),
		logLevel:          DefaultLogLevel,
		logFormat:         LogFormatPretty,
		dimensionCacheTTL: DefaultDimensionCacheTTL,
		queue:             NewQueueConfig(),
		drilldown:         NewDrilldownConfig(),
		vectorWeight:      DefaultVectorWeight,
		searchLimit:       DefaultSearchLimit,
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// ProjectPath returns the explicitly configured project path, if any.
func (c AppConfig) ProjectPath() string { return c.projectPath }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// EmbeddingDimensions returns the configured dimension override, or 0 when
// the database column is the source of truth.
func (c AppConfig) EmbeddingDimensions() int { return c.embeddingDims }

// DimensionCacheTTL returns how long a probed column dimension stays fresh.
func (c AppConfig) DimensionCacheTTL() time.Duration { return c.dimensionCacheTTL }

// Queue returns the embedding queue config.
func (c AppConfig) Queue() QueueConfig { return c.queue }

// Drilldown returns the drilldown registry config.
func (c AppConfig) Drilldown() DrilldownConfig { return c.drilldown }

// EmbeddingEndpoint returns the embedding backend config.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// RescoreEndpoint returns the relevance rescoring backend config.
func (c AppConfig) RescoreEndpoint() *Endpoint { return c.rescoreEndpoint }

// TranslateEndpoint returns the translation backend config.
func (c AppConfig) TranslateEndpoint() *Endpoint { return c.translateEndpoint }

// VectorWeight returns the similarity weight used in hybrid rescoring.
func (c AppConfig) VectorWeight() float64 { return c.vectorWeight }

// SearchLimit returns the default search result limit.
func (c AppConfig) SearchLimit() int { return c.searchLimit }

// ZoomConfigPath returns the path of the zoom preset override file, if any.
func (c AppConfig) ZoomConfigPath() string { return c.zoomConfigPath }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Update default DB URL when data dir changes
		if c.dbURL == "" || strings.Contains(c.dbURL, "specmem.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "specmem.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithProjectPath sets the explicit project path.
func WithProjectPath(path string) AppConfigOption {
	return func(c *AppConfig) { c.projectPath = path }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithEmbeddingDimensions sets the dimension override. Zero means the
// database column decides.
func WithEmbeddingDimensions(dims int) AppConfigOption {
	return func(c *AppConfig) {
		if dims >= 0 {
			c.embeddingDims = dims
		}
	}
}

// WithDimensionCacheTTL sets the dimension cache TTL.
func WithDimensionCacheTTL(ttl time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if ttl > 0 {
			c.dimensionCacheTTL = ttl
		}
	}
}

// WithQueueConfig sets the embedding queue config.
func WithQueueConfig(q QueueConfig) AppConfigOption {
	return func(c *AppConfig) { c.queue = q }
}

// WithDrilldownConfig sets the drilldown registry config.
func WithDrilldownConfig(d DrilldownConfig) AppConfigOption {
	return func(c *AppConfig) { c.drilldown = d }
}

// WithEmbeddingEndpoint sets the embedding backend.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithRescoreEndpoint sets the relevance rescoring backend.
func WithRescoreEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.rescoreEndpoint = &e }
}

// WithTranslateEndpoint sets the translation backend.
func WithTranslateEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.translateEndpoint = &e }
}

// WithVectorWeight sets the similarity weight for hybrid rescoring.
func WithVectorWeight(w float64) AppConfigOption {
	return func(c *AppConfig) {
		if w >= 0 && w <= 1 {
			c.vectorWeight = w
		}
	}
}

// WithSearchLimit sets the default search result limit.
func WithSearchLimit(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// WithZoomConfigPath sets the zoom preset override file.
func WithZoomConfigPath(path string) AppConfigOption {
	return func(c *AppConfig) { c.zoomConfigPath = path }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
// This copies all fields from the receiver and then applies the options,
// making it safe to use when adding new fields to AppConfig.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Sensitive values like API keys are masked or shown as counts.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("project_path", c.projectPath),
		slog.Int("embedding_dimensions", c.embeddingDims),
		slog.String("embedding_backend", c.endpointTarget(c.embeddingEndpoint)),
		slog.String("rescore_backend", c.endpointTarget(c.rescoreEndpoint)),
		slog.String("translate_backend", c.endpointTarget(c.translateEndpoint)),
		slog.Int("queue_max_size", c.queue.MaxSize()),
		slog.Int("drilldown_max_size", c.drilldown.MaxSize()),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if len(c.dbURL) >= 7 && c.dbURL[:7] == "sqlite:" {
		return c.dbURL
	}
	return "postgres://***@***"
}

func (c AppConfig) endpointTarget(e *Endpoint) string {
	switch {
	case e == nil:
		return "(not configured)"
	case e.SocketPath() != "":
		return "unix://" + e.SocketPath()
	case e.BaseURL() != "":
		return e.BaseURL()
	default:
		return e.Model()
	}
}
