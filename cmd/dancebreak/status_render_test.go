package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"dancebreak/internal/deps"
	"dancebreak/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Breakdown DB", statusError, "unreadable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Breakdown DB:", "[ERROR] unreadable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Redis", statusOK, "Reachable", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false, Detail: `binary "ffmpeg" not found`},
		{Name: "FFprobe", Available: true, Command: "/usr/bin/ffprobe"},
		{Name: "yt-dlp", Available: false, Optional: true},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], `[ERROR] binary "ffmpeg" not found`) {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: /usr/bin/ffprobe)") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not available") {
		t.Fatalf("optional dependency should warn, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "Missing dependencies") || !strings.Contains(lines[3], "FFmpeg") || strings.Contains(lines[3], "yt-dlp") {
		t.Fatalf("unexpected summary %q", lines[3])
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "State directory", Passed: true, Detail: "/tmp (read/write ok)"},
		{Name: "Pose estimator", Detail: "health check timed out"},
	}, false)
	if !strings.Contains(lines[0], "[OK]") || !strings.Contains(lines[1], "[ERROR] health check timed out") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestShouldColorizeBuffer(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestProgressDisabledForBuffers(t *testing.T) {
	fn, finish := progressFor(&bytes.Buffer{}, true)
	if fn != nil {
		t.Fatal("expected no progress callback for a non-terminal writer")
	}
	finish()
}
