package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obernety/mindweave/internal/config"
	"github.com/obernety/mindweave/internal/llm"
	"github.com/obernety/mindweave/internal/orchestrator"
)

func queryCmd(cfgPath *string) *cobra.Command {
	var persona string
	var topK int
	var debate bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the ingested corpus",
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

			resp, err := o.Query(context.Background(), orchestrator.QueryRequest{
				Query:           strings.Join(args, " "),
				Persona:         llm.Persona(persona),
				TopK:            topK,
				DebateRequested: debate,
			})
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if asJSON {
				raw, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal response: %w", err)
				}
				fmt.Println(string(raw))
				return nil
			}

			fmt.Printf("Strategy: %s (%s)\n", resp.Strategy, resp.StrategyReason)
			fmt.Printf("Confidence: %s (%.2f)\n", resp.Confidence.Level, resp.Confidence.Score)
			fmt.Println()
			fmt.Println(resp.Answer)
			if len(resp.Citations) > 0 {
				fmt.Println("\nSources:")
				for _, c := range resp.Citations {
					fmt.Println("  " + c)
				}
			}
			if len(resp.Conflicts) > 0 {
				fmt.Println("\nConflicts detected:")
				for _, c := range resp.Conflicts {
					fmt.Printf("  %s vs %s: %s\n", c.A.SourceFile, c.B.SourceFile, c.Description)
				}
			}
			for _, w := range resp.Warnings {
				fmt.Println("warning: " + w)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&persona, "persona", string(llm.PersonaStandard), "response persona (standard, academic, executive, eli5, technical, debate, legal, medical, creative)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of evidence chunks to retrieve (0 = default from config)")
	cmd.Flags().BoolVar(&debate, "debate", false, "force a conflict-presentation response regardless of confidence")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON, including the reasoning chain")
	return cmd
}
