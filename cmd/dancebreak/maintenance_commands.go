package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dancebreak/internal/pipeline"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show breakdown and cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				stats, err := p.Statistics(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				renderStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output statistics as JSON")
	return cmd
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove duplicate breakdowns, keeping one canonical row per source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				res, err := p.ReconcileDuplicates(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, res)
				}
				out := cmd.OutOrStdout()
				if res.RemovedCount == 0 {
					fmt.Fprintln(out, "No duplicate breakdowns found")
					return nil
				}
				fmt.Fprintf(out, "Removed %d duplicate breakdown(s) across %d source(s)\n", res.RemovedCount, res.SourcesProcessed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")
	return cmd
}
