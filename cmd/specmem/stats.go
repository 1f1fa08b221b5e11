package main

import (
	"context"
	"fmt"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/domain/queue"
	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the project's memory footprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *specmem.Client) error {
				stats, err := client.Stats(ctx)
				if err != nil {
					return err
				}

				fmt.Printf("project:  %s\n", stats.ProjectPath)
				if stats.ProjectID != "" {
					fmt.Printf("id:       %s\n", stats.ProjectID)
				}
				fmt.Printf("schema:   %s\n", stats.Schema)
				fmt.Printf("memories: %d (%d embedded)\n", stats.Memories, stats.Embedded)
				fmt.Printf("queue:    %d pending, %d failed\n",
					stats.Queue.ByStatus(queue.StatusPending),
					stats.Queue.ByStatus(queue.StatusFailed))
				fmt.Printf("handles:  %d/%d live\n", stats.Handles.Total, stats.Handles.Capacity)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}
