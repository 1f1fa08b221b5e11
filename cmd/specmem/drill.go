package main

import (
	"context"
	"fmt"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/application/service"
	"github.com/spf13/cobra"
)

func drillCmd() *cobra.Command {
	var (
		envFile       string
		zoom          int
		withNeighbors bool
	)

	cmd := &cobra.Command{
		Use:   "drill <handle>",
		Short: "Expand a search result handle",
		Long: `Expand a handle from a previous search: the full memory with its
conversational neighbors, related memories, and linked code, or the
definition body for a code handle. A memory id prefix works too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := args[0]

			var opts []service.DrillOption
			if cmd.Flags().Changed("zoom") {
				if zoom < 0 || zoom > 100 {
					return fmt.Errorf("zoom must be 0-100, got %d", zoom)
				}
				opts = append(opts, service.WithDrillZoom(zoom))
			}
			opts = append(opts, service.WithConversationContext(withNeighbors))

			return withClient(envFile, func(ctx context.Context, client *specmem.Client) error {
				view, ok, err := client.Drilldown.Resolve(ctx, ref, opts...)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("handle %s not found or expired: search first, then drill", ref)
				}
				fmt.Println(view.Render())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().IntVar(&zoom, "zoom", 0, "Content zoom 0-100 for code views (0 = signature only)")
	cmd.Flags().BoolVar(&withNeighbors, "context", true, "Include conversational neighbors")

	return cmd
}
