package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/specmem/specmem/infrastructure/api"
	"github.com/specmem/specmem/internal/config"
	"github.com/specmem/specmem/internal/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and MCP server",
		Long: `Start the HTTP API server, with the MCP endpoint mounted at /mcp.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  SPECMEM_HOST                 Server host to bind to (default: 127.0.0.1)
  SPECMEM_PORT                 Server port to listen on (default: 8080)
  SPECMEM_DATA_DIR             Data directory (default: ~/.specmem)
  SPECMEM_DB_URL               Database URL (default: sqlite:///{data_dir}/specmem.db)
  SPECMEM_PROJECT_PATH         Project whose schema all operations target
                               (default: working directory)
  SPECMEM_LOG_LEVEL            Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  SPECMEM_LOG_FORMAT           Log format: pretty, json (default: pretty)

  SPECMEM_EMBEDDING_*          Embedding backend configuration
    SOCKET_PATH                Unix socket of the sidecar embedding service
    BASE_URL                   OpenAI-compatible base URL
    MODEL                      Model identifier (e.g. text-embedding-3-small)
    API_KEY                    API key for authentication
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)

  SPECMEM_RESCORE_*            Relevance rescoring backend (same fields; optional)
  SPECMEM_TRANSLATE_*          Preview translation backend (same fields; optional)

  SPECMEM_EMBEDDING_DIMENSIONS Vector column width override (default: probe the database)
  SPECMEM_SEARCH_LIMIT         Default search result limit (default: 15)
  SPECMEM_VECTOR_WEIGHT        Similarity weight in hybrid rescoring (default: 0.4)
  SPECMEM_ZOOM_CONFIG          YAML file overriding the zoom presets

  SPECMEM_EMBED_QUEUE_*        Embedding overflow queue
    MAX_SIZE                   Pending entry cap (default: 500)
    MAX_AGE_MS                 Waiter lifetime (default: 300000)
    CLEANUP_INTERVAL_MS        Waiter sweep interval (default: 60000)

  SPECMEM_DRILLDOWN_*          Drilldown handle registry
    MAX_SIZE                   Handle cap (default: 10000)
    TTL_MS                     Handle lifetime (default: 1800000)
    CLEANUP_INTERVAL_MS        Handle sweep interval (default: 300000)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 127.0.0.1)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// Apply command line overrides (flags take precedence over env vars)
	cfg = applyServeOverrides(cfg, host, port)

	addr := cfg.Addr()

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	slogger := log.NewLogger(cfg).Slog()

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting specmem", attrs...)

	client, err := newClient(cfg, slogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close specmem client", slog.Any("error", err))
		}
	}()

	apiServer := api.NewAPIServer(client)
	apiServer.MountRoutes()

	// Root endpoint with API info
	apiServer.Router().Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"name":"specmem","version":"%s"}`, version)
	})

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slogger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	slogger.Info("starting server", slog.String("addr", addr))
	if err := apiServer.ListenAndServe(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
