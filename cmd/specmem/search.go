package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/specmem/specmem"
	"github.com/specmem/specmem/application/service"
	"github.com/specmem/specmem/domain/search"
	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var (
		envFile   string
		zoom      string
		limit     int
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories at a zoom level",
		Long: `Search project memories and print one camera-roll page.

Without --zoom the level comes from the adaptive search config: small
corpora search wide, large corpora search close. Each result line
carries a numeric handle for 'specmem drill'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			var opts []service.ShotOption
			if zoom != "" {
				level := search.ZoomLevel(zoom)
				if !search.ValidZoom(level) {
					return fmt.Errorf("unknown zoom level: %s", zoom)
				}
				opts = append(opts, service.AtZoom(level))
			}
			if limit > 0 {
				opts = append(opts, service.WithShotLimit(limit))
			}
			if cmd.Flags().Changed("threshold") {
				opts = append(opts, service.WithShotThreshold(threshold))
			}

			return withClient(envFile, func(ctx context.Context, client *specmem.Client) error {
				result, err := client.Search.Search(ctx, query, opts...)
				if err != nil {
					return err
				}
				fmt.Println(result.Render())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&zoom, "zoom", "", "Zoom level: ultra-wide, wide, normal, close, macro")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results (default: the zoom preset's)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity threshold override (0-1)")

	return cmd
}
