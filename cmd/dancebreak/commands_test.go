package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBreakdownThenCacheHit(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"breakdown", env.video, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	var first struct {
		Breakdown struct {
			ID                 int64  `json:"id"`
			Title              string `json:"title"`
			Success            bool   `json:"success"`
			SegmentationMethod string `json:"segmentation_method"`
			Steps              []struct {
				StepNumber int `json:"step_number"`
			} `json:"steps"`
		} `json:"breakdown"`
		CacheHit bool `json:"cache_hit"`
	}
	if err := json.Unmarshal([]byte(out), &first); err != nil {
		t.Fatalf("decode breakdown json: %v\n%s", err, out)
	}
	if !first.Breakdown.Success || first.CacheHit {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Breakdown.Title != "routine" || first.Breakdown.SegmentationMethod != "grid" {
		t.Fatalf("unexpected breakdown: %+v", first.Breakdown)
	}
	if len(first.Breakdown.Steps) == 0 || first.Breakdown.Steps[0].StepNumber != 1 {
		t.Fatalf("expected numbered steps, got %+v", first.Breakdown.Steps)
	}

	out, _, err = runCLI(t, []string{"breakdown", env.video}, env.configPath)
	if err != nil {
		t.Fatalf("second breakdown: %v", err)
	}
	requireContains(t, out, "Served from an existing breakdown")
	requireContains(t, out, "routine")

	out, _, err = runCLI(t, []string{"stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats struct {
		Total     int `json:"total_breakdowns"`
		CacheHits int `json:"cache_hits"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 1 || stats.CacheHits != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBreakdownsListShowDelete(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"breakdowns", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	requireContains(t, out, "No breakdowns stored")

	if _, _, err := runCLI(t, []string{"breakdown", env.video, "--no-progress"}, env.configPath); err != nil {
		t.Fatalf("breakdown: %v", err)
	}

	out, _, err = runCLI(t, []string{"breakdowns", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "routine")

	out, _, err = runCLI(t, []string{"breakdowns", "show", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "succeeded")
	requireContains(t, out, "00:00.000")

	if _, _, err := runCLI(t, []string{"breakdowns", "show", "abc"}, env.configPath); err == nil {
		t.Fatal("expected error for non-numeric id")
	}

	out, _, err = runCLI(t, []string{"breakdowns", "delete", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Deleted breakdown 1")

	if _, _, err := runCLI(t, []string{"breakdowns", "delete", "1"}, env.configPath); err == nil {
		t.Fatal("expected error deleting a missing breakdown")
	}
}

func TestBreakdownRejectsUnknownMode(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"breakdown", env.video, "--mode", "freestyle"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestScoreWithoutPoseIsNeutral(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"score", env.video, "--challenge", "combo", "--bpm", "100", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var res struct {
		Total         int    `json:"total_score"`
		ChallengeType string `json:"challenge_type"`
		Insufficient  bool   `json:"insufficient_data"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode score: %v\n%s", err, out)
	}
	if !res.Insufficient || res.ChallengeType != "combo" {
		t.Fatalf("unexpected score: %+v", res)
	}

	if _, _, err := runCLI(t, []string{"score", env.video, "--bpm", "-5"}, env.configPath); err == nil {
		t.Fatal("expected error for negative bpm")
	}
}

func TestReconcileWithNothingToDo(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"reconcile"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	requireContains(t, out, "No duplicate breakdowns found")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}

	// The generated sample must load.
	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigWeights(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "weights"}, env.configPath)
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	for _, want := range []string{"Weight table version", "freestyle", "spin", "combo"} {
		requireContains(t, out, want)
	}

	exported := filepath.Join(t.TempDir(), "weights.toml")
	if _, _, err := runCLI(t, []string{"config", "weights", "--export", exported}, env.configPath); err != nil {
		t.Fatalf("export weights: %v", err)
	}
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "version") {
		t.Fatalf("exported table missing version:\n%s", data)
	}
}

func TestStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--offline"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "== Configuration ==")
	requireContains(t, out, "Breakdown DB")
	requireContains(t, out, "Pose estimator")
	if strings.Contains(out, "== Services ==") {
		t.Fatalf("offline status should skip service checks:\n%s", out)
	}
}

func TestLogsFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	logDir := filepath.Join(env.stateDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "stage started job_id=aaa\nstage started job_id=bbb\nstage completed job_id=aaa\n"
	if err := os.WriteFile(filepath.Join(logDir, "dancebreak.log"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "--job", "aaa"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "bbb") {
		t.Fatalf("unexpected line for other job:\n%s", out)
	}
	requireContains(t, out, "stage completed job_id=aaa")
}
