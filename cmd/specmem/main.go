// Package main is the entry point for the specmem CLI.
package main

import (
	"fmt"
	"os"

	"github.com/specmem/specmem/internal/config"
	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specmem",
		Short: "SpecMem persistent memory server",
		Long:  `SpecMem stores assistant memories per project and retrieves them through zoomable camera-roll search, over MCP, HTTP, or this CLI.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(drillCmd())
	cmd.AddCommand(queueCmd())
	cmd.AddCommand(statsCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
