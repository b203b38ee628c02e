package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dancebreak/internal/pipeline"
)

func newScoreCommand(ctx *commandContext) *cobra.Command {
	var challenge string
	var difficulty string
	var targetBPM float64
	var userID string
	var jsonOutput bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "score <source>",
		Short: "Score a challenge attempt on technique, rhythm, expression, and difficulty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.ScoreRequest{
				Source:              args[0],
				ChallengeType:       strings.TrimSpace(challenge),
				ChallengeDifficulty: strings.TrimSpace(difficulty),
				UserID:              strings.TrimSpace(userID),
			}
			if cmd.Flags().Changed("bpm") {
				if targetBPM <= 0 {
					return fmt.Errorf("--bpm must be positive")
				}
				bpm := targetBPM
				req.TargetBPM = &bpm
			}
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				progress, finish := progressFor(cmd.ErrOrStderr(), !jsonOutput && !noProgress)
				req.Progress = progress
				res, err := p.Score(cmd.Context(), req)
				finish()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, res)
				}
				renderScore(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&challenge, "challenge", "", "Challenge type (see `dancebreak config weights`)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Challenge difficulty label")
	cmd.Flags().Float64Var(&targetBPM, "bpm", 0, "Target tempo; overrides the tempo detected from the audio")
	cmd.Flags().StringVar(&userID, "user", "", "User ID to attribute the request to")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the pose extraction progress bar")
	return cmd
}
