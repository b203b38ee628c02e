package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dancebreak/internal/pipeline"
)

func newBreakdownCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var difficulty string
	var userID string
	var jsonOutput bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "breakdown <source>",
		Short: "Break a dance video into timed, described steps",
		Long: `Break a dance video into timed, described steps.

The source may be an object-store key, an external video URL, or a local file.
A previous successful breakdown of the same source is returned from the store
without re-running the pipeline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				progress, finish := progressFor(cmd.ErrOrStderr(), !jsonOutput && !noProgress)
				res, err := p.Breakdown(cmd.Context(), pipeline.Request{
					Source:           args[0],
					Mode:             strings.TrimSpace(mode),
					TargetDifficulty: strings.TrimSpace(difficulty),
					UserID:           strings.TrimSpace(userID),
					Progress:         progress,
				})
				finish()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, res)
				}

				out := cmd.OutOrStdout()
				switch {
				case res.CacheHit:
					fmt.Fprintln(out, "Served from an existing breakdown")
				case res.Shared:
					fmt.Fprintln(out, "Joined a breakdown already in progress")
				}
				renderBreakdown(out, &res.Breakdown)
				if !res.Success() {
					return fmt.Errorf("breakdown failed: %s", res.Breakdown.ErrorMessage)
				}
				if res.Fallbacks > 0 {
					fmt.Fprintf(out, "%d step(s) used template content\n", res.Fallbacks)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Step content mode: manual or auto (default from config)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Target difficulty label recorded on the breakdown")
	cmd.Flags().StringVar(&userID, "user", "", "User ID to attribute the request to")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the pose extraction progress bar")
	return cmd
}
