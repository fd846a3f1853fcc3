package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obernety/mindweave/internal/language"
)

func languagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List the supported query/answer languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, l := range language.Supported() {
				fmt.Printf("%s  %s  %s\n", l.Code, l.Flag, l.Name)
			}
			return nil
		},
	}
	return cmd
}
