package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obernety/mindweave/internal/config"
	"github.com/obernety/mindweave/internal/orchestrator"
)

func resetCmd(cfgPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop the entire ingested corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("this drops the entire corpus; re-run with --yes to confirm")
			}

			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			o, err := orchestrator.New(cfg, nil)
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}
			defer o.Close()

			if err := o.Reset(context.Background()); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			fmt.Println("corpus reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
