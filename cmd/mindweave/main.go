package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "mindweave",
		Short: "Evidence-grounded multimodal retrieval and answering engine",
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default: ./config.yaml)")

	root.AddCommand(
		ingestCmd(&cfgPath),
		queryCmd(&cfgPath),
		resetCmd(&cfgPath),
		statsCmd(&cfgPath),
		languagesCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
