package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obernety/mindweave/internal/config"
	"github.com/obernety/mindweave/internal/orchestrator"
)

func ingestCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Process and store one or more files into the corpus",
		Args:  cobra.MinimumNArgs(1),
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

			ctx := context.Background()
			var failures int
			for _, path := range args {
				result, err := o.Ingest(ctx, path)
				if err != nil {
					fmt.Printf("%s: FAILED: %v\n", path, err)
					failures++
					continue
				}
				fmt.Printf("%s: ingested %v\n", path, result.ChunksByModality)
				for _, w := range result.Warnings {
					fmt.Printf("%s: warning: %s\n", path, w)
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d file(s) failed to ingest", failures, len(args))
			}
			return nil
		},
	}
	return cmd
}
