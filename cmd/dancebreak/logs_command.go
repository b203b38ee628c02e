package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dancebreak/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var jobID string
	var sourceIdentity string
	var grep []string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log lines, optionally for one job or source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, "dancebreak.log")
			filter := logs.Filter{Terms: append([]string(nil), grep...)}
			if id := strings.TrimSpace(jobID); id != "" {
				filter.Terms = append(filter.Terms, id)
			}
			if identity := strings.TrimSpace(sourceIdentity); identity != "" {
				filter.Terms = append(filter.Terms, identity)
			}

			out := cmd.OutOrStdout()
			res, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines, Filter: filter})
			if err != nil {
				return err
			}
			for _, line := range res.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(res.Lines) == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No matching log lines in %s\n", path)
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, res.Offset, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&jobID, "job", "", "Only lines for this job ID")
	cmd.Flags().StringVar(&sourceIdentity, "source", "", "Only lines for this source identity")
	cmd.Flags().StringArrayVar(&grep, "grep", nil, "Only lines containing this text (repeatable)")
	return cmd
}
