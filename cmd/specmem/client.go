package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/internal/config"
	"github.com/specmem/specmem/internal/log"
)

// newClient builds a specmem client from the resolved config. The whole
// AppConfig rides in on one option; entrypoints append their own on top.
func newClient(cfg config.AppConfig, logger *slog.Logger, extra ...specmem.Option) (*specmem.Client, error) {
	opts := append([]specmem.Option{
		specmem.WithConfig(cfg),
		specmem.WithLogger(logger),
	}, extra...)

	client, err := specmem.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create specmem client: %w", err)
	}
	return client, nil
}

// stderrLogger returns a logger writing to stderr, keeping stdout clean
// for command output.
func stderrLogger(cfg config.AppConfig) *slog.Logger {
	return log.NewLoggerWithWriter(os.Stderr, cfg.LogFormat(), cfg.LogLevel()).Slog()
}

// withClient runs fn with a client built from the environment. Used by the
// one-shot commands: config load, data dir, client lifecycle, and signal
// cancellation are the same for all of them.
func withClient(envFile string, fn func(ctx context.Context, client *specmem.Client) error) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger := stderrLogger(cfg)

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close specmem client", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, client)
}
