package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dancebreak/internal/breakdown"
	"dancebreak/internal/config"
	"dancebreak/internal/scoring"
)

// writeJSON prints v indented on stdout. Media URLs keep their raw '&'.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBPM(bpm *float64) string {
	if bpm == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*bpm, 'f', -1, 64)
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func breakdownSummary(b *breakdown.Breakdown) [][2]string {
	status := "succeeded"
	if !b.Success {
		status = "failed"
	}
	pairs := [][2]string{
		{"ID", strconv.FormatInt(b.ID, 10)},
		{"Title", b.Title},
		{"Source", b.SourceReference},
		{"Status", status},
		{"Duration", fmt.Sprintf("%.1fs", b.DurationSeconds)},
		{"BPM", formatBPM(b.BPM)},
		{"Difficulty", b.DifficultyLevel},
		{"Mode", b.Mode},
		{"Segmentation", b.SegmentationMethod},
		{"Steps", strconv.Itoa(b.TotalSteps())},
	}
	if b.PlayableMediaURL != "" {
		pairs = append(pairs, [2]string{"Playable", b.PlayableMediaURL})
	}
	if b.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", b.ErrorMessage})
	}
	if !b.CreatedAt.IsZero() {
		pairs = append(pairs, [2]string{"Created", formatCreated(b.CreatedAt)})
	}
	return pairs
}

func stepRows(b *breakdown.Breakdown) [][]string {
	rows := make([][]string, 0, len(b.Steps))
	for _, s := range b.Steps {
		rows = append(rows, []string{
			strconv.Itoa(s.StepNumber),
			s.StartTimestamp + " - " + s.EndTimestamp,
			s.Name,
			s.GlobalDescription,
		})
	}
	return rows
}

func renderBreakdown(out io.Writer, b *breakdown.Breakdown) {
	fmt.Fprint(out, renderKeyValues(breakdownSummary(b)))
	if len(b.Steps) == 0 {
		return
	}
	fmt.Fprint(out, renderTable(
		[]string{"#", "Time", "Step", "Description"},
		stepRows(b),
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
}

func breakdownListRows(list []*breakdown.Breakdown) [][]string {
	rows := make([][]string, 0, len(list))
	for _, b := range list {
		status := "ok"
		if !b.Success {
			status = "failed"
		}
		rows = append(rows, []string{
			strconv.FormatInt(b.ID, 10),
			b.Title,
			status,
			strconv.Itoa(b.TotalSteps()),
			b.Mode,
			formatCreated(b.CreatedAt),
		})
	}
	return rows
}

func renderScore(out io.Writer, r *scoring.Result) {
	rows := make([][]string, 0, len(config.Dimensions)+1)
	for _, dim := range config.Dimensions {
		rows = append(rows, []string{dim, strconv.Itoa(r.Score(dim)), r.Feedback.Dimensions[dim]})
	}
	rows = append(rows, []string{"total", strconv.Itoa(r.Total), r.Feedback.Overall})
	fmt.Fprint(out, renderTable(
		[]string{"Dimension", "Score", "Feedback"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
	))

	pairs := [][2]string{
		{"Challenge", r.ChallengeType},
		{"Confidence", fmt.Sprintf("%.2f", r.Confidence)},
		{"Frames", fmt.Sprintf("%d/%d", r.FramesAnalyzed, r.TotalFrames)},
		{"Weights", r.WeightsVersion},
	}
	if r.Insufficient {
		pairs = append(pairs, [2]string{"Note", "not enough pose data; scores are neutral"})
	}
	fmt.Fprint(out, renderKeyValues(pairs))
}

func renderStats(out io.Writer, s breakdown.Stats) {
	fmt.Fprint(out, renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"Total breakdowns", strconv.Itoa(s.Total)},
			{"Successful", strconv.Itoa(s.Successful)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Unique sources", strconv.Itoa(s.UniqueSources)},
			{"Cache hits", strconv.Itoa(s.CacheHits)},
			{"Cache efficiency", fmt.Sprintf("%.1f%%", s.CacheEfficiencyPct)},
			{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRatePct)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))
}

func renderWeights(out io.Writer, t config.WeightTable) {
	fmt.Fprintf(out, "Weight table version %s (default challenge: %s)\n", t.Version, t.DefaultChallenge)
	names := t.ChallengeTypes()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		w, _ := t.ChallengeWeightsFor(name)
		rows = append(rows, []string{
			name,
			formatWeight(w.Technique),
			formatWeight(w.Rhythm),
			formatWeight(w.Expression),
			formatWeight(w.Difficulty),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Challenge", "Technique", "Rhythm", "Expression", "Difficulty"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))

	labels := make([]string, 0, len(t.DifficultyMultipliers))
	for label := range t.DifficultyMultipliers {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	multipliers := make([]string, 0, len(labels))
	for _, label := range labels {
		multipliers = append(multipliers, fmt.Sprintf("%s=%s", label, formatWeight(t.DifficultyMultipliers[label])))
	}
	if len(multipliers) > 0 {
		fmt.Fprintf(out, "Difficulty multipliers: %s\n", strings.Join(multipliers, ", "))
	}
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
