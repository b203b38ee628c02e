package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dancebreak/internal/breakdown"
	"dancebreak/internal/deps"
	"dancebreak/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency, and service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string

			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			path := ctx.configPath
			if path == "" {
				path = "defaults"
			}
			lines = append(lines,
				renderStatusLine("Config", statusInfo, path, colorize),
				renderStatusLine("Step mode", statusInfo, cfg.Steps.Mode, colorize),
				renderStatusLine("Lock backend", statusInfo, cfg.Lock.Backend, colorize),
				renderStatusLine("Weights", statusInfo, cfg.Scoring.Weights.Version, colorize),
			)
			if cfg.Pose.Endpoint == "" {
				lines = append(lines, renderStatusLine("Pose estimator", statusWarn, "not configured; breakdowns fall back to the beat grid", colorize))
			}
			if cfg.LLM.APIKey == "" {
				lines = append(lines, renderStatusLine("Step LLM", statusWarn, "no API key; auto mode uses template content", colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			lines = append(lines, dependencyLines(statuses, colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Storage", colorize)...)
			lines = append(lines, databaseLines(ctx, cmd, colorize)...)

			if !skipChecks {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Services", colorize)...)
				lines = append(lines, preflightLines(preflight.RunAll(cmd.Context(), cfg), colorize)...)
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "offline", false, "Skip directory and network service checks")
	return cmd
}

func databaseLines(ctx *commandContext, cmd *cobra.Command, colorize bool) []string {
	var lines []string
	err := ctx.withStore(func(store *breakdown.Store) error {
		health, err := store.CheckHealth(cmd.Context())
		if err != nil {
			return err
		}
		detail := fmt.Sprintf("%s (schema v%d, %d breakdowns)", health.DBPath, health.SchemaVersion, health.TotalBreakdowns)
		kind := statusOK
		if len(health.MissingColumns) > 0 {
			kind = statusError
			detail = fmt.Sprintf("%s (missing columns: %s)", health.DBPath, strings.Join(health.MissingColumns, ", "))
		}
		lines = append(lines, renderStatusLine("Breakdown DB", kind, detail, colorize))

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		lines = append(lines, renderStatusLine("Cache", statusInfo,
			fmt.Sprintf("%d unique sources, %d hits, %.1f%% efficiency", stats.UniqueSources, stats.CacheHits, stats.CacheEfficiencyPct), colorize))
		return nil
	})
	if err != nil {
		lines = append(lines, renderStatusLine("Breakdown DB", statusError, err.Error(), colorize))
	}
	return lines
}
