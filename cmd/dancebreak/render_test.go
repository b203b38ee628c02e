package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"dancebreak/internal/breakdown"
	"dancebreak/internal/scoring"
	"dancebreak/internal/steps"
)

func TestFormatBPM(t *testing.T) {
	if got := formatBPM(nil); got != "unknown" {
		t.Fatalf("formatBPM(nil) = %q", got)
	}
	bpm := 120.0
	if got := formatBPM(&bpm); got != "120" {
		t.Fatalf("formatBPM(120) = %q", got)
	}
}

func TestRenderBreakdownFailed(t *testing.T) {
	var buf bytes.Buffer
	renderBreakdown(&buf, &breakdown.Breakdown{
		ID:           7,
		Title:        "sample",
		Mode:         "manual",
		ErrorMessage: "no acquisition strategy applies to this source",
		CreatedAt:    time.Now(),
	})
	out := buf.String()
	for _, want := range []string{"failed", "no acquisition strategy", "unknown"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestBreakdownListRows(t *testing.T) {
	rows := breakdownListRows([]*breakdown.Breakdown{
		{ID: 2, Title: "b", Success: true, Mode: "auto", Steps: []steps.Step{{StepNumber: 1}, {StepNumber: 2}}},
		{ID: 1, Title: "a", Mode: "manual"},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "2" || rows[0][2] != "ok" || rows[0][3] != "2" {
		t.Fatalf("unexpected first row %q", rows[0])
	}
	if rows[1][2] != "failed" || rows[1][5] != "" {
		t.Fatalf("unexpected second row %q", rows[1])
	}
}

func TestRenderScoreInsufficient(t *testing.T) {
	var buf bytes.Buffer
	renderScore(&buf, &scoring.Result{
		Technique:     50,
		Total:         50,
		ChallengeType: "spin",
		Insufficient:  true,
		Feedback: scoring.Feedback{
			Overall:    "keep practicing",
			Dimensions: map[string]string{"technique": "steady base"},
		},
	})
	out := buf.String()
	for _, want := range []string{"spin", "keep practicing", "steady base", "not enough pose data"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
