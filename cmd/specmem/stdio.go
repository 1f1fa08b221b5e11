package main

import (
	"fmt"
	"log/slog"

	"github.com/specmem/specmem/internal/mcp"
	"github.com/spf13/cobra"
)

func stdioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This is how an AI assistant talks to SpecMem: search_memory, drill_down,
get_memory_by_id, and zoom tools over the stdio transport. Configuration
is loaded from environment variables and .env file; logs go to stderr
since stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runStdio(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// stdout is the MCP transport, so the logger writes to stderr.
	slogger := stderrLogger(cfg)

	slogger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
	)

	client, err := newClient(cfg, slogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close specmem client", slog.Any("error", err))
		}
	}()

	mcpServer := mcp.NewServer(client.Search, client.Drilldown, client.Registry(), version, slogger)

	return mcpServer.ServeStdio()
}
