package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obernety/mindweave/internal/config"
	"github.com/obernety/mindweave/internal/orchestrator"
)

func statsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus size broken down by modality",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			o, err := orchestrator.New(cfg, nil)
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}
			defer o.Close()

			stats := o.Stats(context.Background())
			fmt.Printf("total chunks: %d\n", stats.TotalChunks)
			for modality, count := range stats.ChunksByModality {
				fmt.Printf("  %s: %d\n", modality, count)
			}
			return nil
		},
	}
	return cmd
}
