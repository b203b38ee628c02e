package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dancebreak/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "dancebreak")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.WorkDir != filepath.Join(wantState, "work") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	if cfg.Storage.BreakdownDB != filepath.Join(wantState, "breakdowns.db") {
		t.Fatalf("unexpected db path: %q", cfg.Storage.BreakdownDB)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Steps.Mode != config.StepsModeManual {
		t.Fatalf("expected manual steps mode by default, got %q", cfg.Steps.Mode)
	}
	if cfg.Lock.Backend != config.LockBackendFile {
		t.Fatalf("expected file lock backend, got %q", cfg.Lock.Backend)
	}
	if cfg.Scoring.Weights.Version != config.DefaultWeightsVersion {
		t.Fatalf("expected default weights, got %q", cfg.Scoring.Weights.Version)
	}
	if got := strings.Join(cfg.Ingest.Profiles, ","); got != "ios,android,web_low" {
		t.Fatalf("unexpected default profiles %q", got)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
state_dir = "` + filepath.Join(dir, "state") + `"

[steps]
mode = "AUTO"

[ingest]
profiles = ["Android", "android", " ios "]

[analysis]
segment_penalty = 8.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if !cfg.StepsAuto() {
		t.Fatalf("expected auto mode, got %q", cfg.Steps.Mode)
	}
	if got := strings.Join(cfg.Ingest.Profiles, ","); got != "android,ios" {
		t.Fatalf("expected deduplicated profiles, got %q", got)
	}
	if cfg.Analysis.SegmentPenalty != 8.5 {
		t.Fatalf("unexpected penalty %v", cfg.Analysis.SegmentPenalty)
	}
	if cfg.Paths.LogDir != filepath.Join(dir, "state", "logs") {
		t.Fatalf("expected log dir derived from state dir, got %q", cfg.Paths.LogDir)
	}
}

func TestStateDirMovesDerivedPaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	state := filepath.Join(dir, "state")
	work := filepath.Join(dir, "scratch")
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
state_dir = "` + state + `"
work_dir = "` + work + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := map[string]string{
		"work_dir":     work,
		"log_dir":      filepath.Join(state, "logs"),
		"objects_dir":  filepath.Join(state, "objects"),
		"lock.dir":     filepath.Join(state, "locks"),
		"breakdown_db": filepath.Join(state, "breakdowns.db"),
	}
	got := map[string]string{
		"work_dir":     cfg.Paths.WorkDir,
		"log_dir":      cfg.Paths.LogDir,
		"objects_dir":  cfg.Paths.ObjectsDir,
		"lock.dir":     cfg.Lock.Dir,
		"breakdown_db": cfg.Storage.BreakdownDB,
	}
	for key, w := range want {
		if got[key] != w {
			t.Fatalf("%s = %q, want %q", key, got[key], w)
		}
	}
}

func TestValidateRejectsUnknownStepsMode(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[steps]\nmode = \"magic\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "steps.mode") {
		t.Fatalf("expected steps.mode error, got %v", err)
	}
}

func TestValidateRedisBackendRequiresURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DANCEBREAK_REDIS_URL", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[lock]\nbackend = \"redis\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "redis.url") {
		t.Fatalf("expected redis.url error, got %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = base
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ObjectsDir = filepath.Join(base, "objects")
	cfg.Lock.Dir = filepath.Join(base, "locks")
	cfg.Storage.BreakdownDB = filepath.Join(base, "db", "breakdowns.db")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Paths.ObjectsDir, cfg.Lock.Dir, filepath.Join(base, "db")} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
