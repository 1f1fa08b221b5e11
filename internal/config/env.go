// Package config provides application configuration.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix shared by all environment variables.
const EnvPrefix = "SPECMEM"

// EnvConfig holds all environment-based configuration.
// Field names map to environment variables with the SPECMEM_ prefix,
// e.g. SPECMEM_PROJECT_PATH or SPECMEM_EMBED_QUEUE_MAX_SIZE.
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: SPECMEM_HOST (default: 127.0.0.1)
	Host string `envconfig:"HOST" default:"127.0.0.1"`

	// Port is the server port to listen on.
	// Env: SPECMEM_PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: SPECMEM_DATA_DIR
	// Default: ~/.specmem
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: SPECMEM_DB_URL
	// Default: sqlite:///{data_dir}/specmem.db
	DBURL string `envconfig:"DB_URL"`

	// ProjectPath pins the project whose schema all operations target.
	// When empty the working directory decides, per call.
	// Env: SPECMEM_PROJECT_PATH
	ProjectPath string `envconfig:"PROJECT_PATH"`

	// LogLevel is the log verbosity level.
	// Env: SPECMEM_LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: SPECMEM_LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// EmbeddingDimensions overrides the probed embedding column width.
	// Zero means the database column is the source of truth.
	// Env: SPECMEM_EMBEDDING_DIMENSIONS (default: 0)
	EmbeddingDimensions int `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`

	// DimensionCacheTTLMS is the dimension cache TTL in milliseconds.
	// Env: SPECMEM_DIMENSION_CACHE_TTL_MS (default: 300000)
	DimensionCacheTTLMS int `envconfig:"DIMENSION_CACHE_TTL_MS" default:"300000"`

	// DrilldownMaxSize caps the drilldown handle registry.
	// Env: SPECMEM_DRILLDOWN_MAX_SIZE (default: 10000)
	DrilldownMaxSize int `envconfig:"DRILLDOWN_MAX_SIZE" default:"10000"`

	// DrilldownTTLMS is the handle lifetime in milliseconds.
	// Env: SPECMEM_DRILLDOWN_TTL_MS (default: 1800000)
	DrilldownTTLMS int `envconfig:"DRILLDOWN_TTL_MS" default:"1800000"`

	// DrilldownCleanupIntervalMS is the sweep interval in milliseconds.
	// Env: SPECMEM_DRILLDOWN_CLEANUP_INTERVAL_MS (default: 300000)
	DrilldownCleanupIntervalMS int `envconfig:"DRILLDOWN_CLEANUP_INTERVAL_MS" default:"300000"`

	// EmbedQueueMaxSize caps pending embedding queue entries.
	// Env: SPECMEM_EMBED_QUEUE_MAX_SIZE (default: 500)
	EmbedQueueMaxSize int `envconfig:"EMBED_QUEUE_MAX_SIZE" default:"500"`

	// EmbedQueueMaxAgeMS is the waiter lifetime in milliseconds.
	// Env: SPECMEM_EMBED_QUEUE_MAX_AGE_MS (default: 300000)
	EmbedQueueMaxAgeMS int `envconfig:"EMBED_QUEUE_MAX_AGE_MS" default:"300000"`

	// EmbedQueueCleanupIntervalMS is the waiter sweep interval in milliseconds.
	// Env: SPECMEM_EMBED_QUEUE_CLEANUP_INTERVAL_MS (default: 60000)
	EmbedQueueCleanupIntervalMS int `envconfig:"EMBED_QUEUE_CLEANUP_INTERVAL_MS" default:"60000"`

	// SearchLimit is the default search result limit.
	// Env: SPECMEM_SEARCH_LIMIT (default: 15)
	SearchLimit int `envconfig:"SEARCH_LIMIT" default:"15"`

	// VectorWeight is the similarity weight in hybrid rescoring.
	// Env: SPECMEM_VECTOR_WEIGHT (default: 0.4)
	VectorWeight float64 `envconfig:"VECTOR_WEIGHT" default:"0.4"`

	// ZoomConfig is the path of a YAML file overriding zoom presets.
	// Env: SPECMEM_ZOOM_CONFIG
	ZoomConfig string `envconfig:"ZOOM_CONFIG"`

	// Embedding configures the embedding backend.
	Embedding EndpointEnv `envconfig:"EMBEDDING"`

	// Rescore configures the relevance rescoring backend.
	Rescore EndpointEnv `envconfig:"RESCORE"`

	// Translate configures the translation backend.
	Translate EndpointEnv `envconfig:"TRANSLATE"`
}

// EndpointEnv holds environment configuration for a backend endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: SPECMEM_*_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier (e.g. text-embedding-3-small).
	// Env: SPECMEM_*_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: SPECMEM_*_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// SocketPath is the Unix socket path for local communication.
	// Env: SPECMEM_*_SOCKET_PATH
	SocketPath string `envconfig:"SOCKET_PATH"`

	// Timeout is the request timeout in seconds.
	// Env: SPECMEM_*_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: SPECMEM_*_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: SPECMEM_*_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: SPECMEM_*_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// LoadFromEnv loads configuration from SPECMEM_-prefixed environment
// variables.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix(EnvPrefix)
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.ProjectPath != "" {
		cfg = applyOption(cfg, WithProjectPath(e.ProjectPath))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	cfg = applyOption(cfg, WithEmbeddingDimensions(e.EmbeddingDimensions))
	cfg = applyOption(cfg, WithDimensionCacheTTL(millis(e.DimensionCacheTTLMS)))

	cfg = applyOption(cfg, WithQueueConfig(NewQueueConfig().
		WithMaxSize(e.EmbedQueueMaxSize).
		WithMaxAge(millis(e.EmbedQueueMaxAgeMS)).
		WithCleanupInterval(millis(e.EmbedQueueCleanupIntervalMS))))

	cfg = applyOption(cfg, WithDrilldownConfig(NewDrilldownConfig().
		WithMaxSize(e.DrilldownMaxSize).
		WithTTL(millis(e.DrilldownTTLMS)).
		WithSweepInterval(millis(e.DrilldownCleanupIntervalMS))))

	if e.SearchLimit > 0 {
		cfg = applyOption(cfg, WithSearchLimit(e.SearchLimit))
	}
	cfg = applyOption(cfg, WithVectorWeight(e.VectorWeight))

	if e.ZoomConfig != "" {
		cfg = applyOption(cfg, WithZoomConfigPath(e.ZoomConfig))
	}

	if e.Embedding.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.Embedding.ToEndpoint()))
	}
	if e.Rescore.IsConfigured() {
		cfg = applyOption(cfg, WithRescoreEndpoint(e.Rescore.ToEndpoint()))
	}
	if e.Translate.IsConfigured() {
		cfg = applyOption(cfg, WithTranslateEndpoint(e.Translate.ToEndpoint()))
	}

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// millis converts a millisecond count to a duration.
func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// IsConfigured returns true if the endpoint has a backend configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != "" || e.SocketPath != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.Model != "" {
		opts = append(opts, WithModel(e.Model))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	if e.SocketPath != "" {
		opts = append(opts, WithSocketPath(e.SocketPath))
	}

	return NewEndpointWithOptions(opts...)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
