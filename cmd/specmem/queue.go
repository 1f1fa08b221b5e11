package main

import (
	"context"
	"fmt"
	"time"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/domain/queue"
	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the embedding overflow queue",
	}

	cmd.AddCommand(queueStatsCmd())
	cmd.AddCommand(queueDrainCmd())
	cmd.AddCommand(queueCleanupCmd())

	return cmd
}

func queueStatsCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print queue depth per lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *specmem.Client) error {
				stats, err := client.Queue.Stats(ctx)
				if err != nil {
					return err
				}

				fmt.Printf("pending:    %d\n", stats.ByStatus(queue.StatusPending))
				fmt.Printf("processing: %d\n", stats.ByStatus(queue.StatusProcessing))
				fmt.Printf("completed:  %d\n", stats.ByStatus(queue.StatusCompleted))
				fmt.Printf("failed:     %d\n", stats.ByStatus(queue.StatusFailed))
				fmt.Printf("waiting:    %d\n", stats.Waiting())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func queueDrainCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Embed all pending queue entries",
		Long: `Claim every pending queue entry and embed it with the configured
backend. Rows that fail to embed are marked failed and left for
inspection; 'queue cleanup' removes them once they age out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *specmem.Client) error {
				result, err := client.DrainQueue(ctx)
				if err != nil {
					return err
				}

				fmt.Printf("processed: %d\n", result.Processed())
				fmt.Printf("failed:    %d\n", result.Failed())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func queueCleanupCmd() *cobra.Command {
	var (
		envFile   string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old completed and failed queue rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *specmem.Client) error {
				removed, err := client.Queue.Cleanup(ctx, olderThan)
				if err != nil {
					return err
				}

				fmt.Printf("removed: %d\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Remove terminal rows older than this")

	return cmd
}
