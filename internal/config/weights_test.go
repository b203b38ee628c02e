package config_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dancebreak/internal/config"
)

func TestDefaultWeightsValidate(t *testing.T) {
	table := config.DefaultWeights()
	if err := table.Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	for _, name := range []string{"freestyle", "static", "spin", "combo"} {
		w, resolved := table.ChallengeWeightsFor(name)
		if resolved != name {
			t.Fatalf("expected %s to resolve to itself, got %s", name, resolved)
		}
		if math.Abs(w.Sum()-1) > 1e-9 {
			t.Fatalf("%s weights sum to %v", name, w.Sum())
		}
	}
}

func TestChallengeWeightsFallbackToDefault(t *testing.T) {
	table := config.DefaultWeights()
	w, resolved := table.ChallengeWeightsFor("breakdance-battle")
	if resolved != "freestyle" {
		t.Fatalf("expected freestyle fallback, got %q", resolved)
	}
	if w.Rhythm != 0.30 {
		t.Fatalf("unexpected fallback weights %+v", w)
	}
	if m := table.DifficultyMultiplier("Advanced"); m != 1.3 {
		t.Fatalf("expected 1.3 multiplier, got %v", m)
	}
	if m := table.DifficultyMultiplier("unknown"); m != 1.0 {
		t.Fatalf("expected neutral multiplier, got %v", m)
	}
}

func TestParseWeightsOverlaysDefaults(t *testing.T) {
	data := []byte(`
version = "2025.2"

[challenges.waack]
technique = 0.2
rhythm = 0.4
expression = 0.3
difficulty = 0.1

[thresholds]
min_valid_frames = 20
`)
	table, err := config.ParseWeights(data)
	if err != nil {
		t.Fatalf("ParseWeights returned error: %v", err)
	}
	if table.Version != "2025.2" {
		t.Fatalf("unexpected version %q", table.Version)
	}
	if _, ok := table.Challenges["waack"]; !ok {
		t.Fatal("expected new challenge type")
	}
	if _, ok := table.Challenges["spin"]; !ok {
		t.Fatal("expected built-in challenge types to be kept")
	}
	if table.Thresholds.MinValidFrames != 20 || table.Thresholds.MinKeypoints != 10 {
		t.Fatalf("unexpected thresholds %+v", table.Thresholds)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("overlaid table invalid: %v", err)
	}
}

func TestValidateRejectsWeightsNotSummingToOne(t *testing.T) {
	table, err := config.ParseWeights([]byte("[challenges.bad]\ntechnique = 0.5\nrhythm = 0.5\nexpression = 0.5\ndifficulty = 0.0\n"))
	if err != nil {
		t.Fatalf("ParseWeights returned error: %v", err)
	}
	if err := table.Validate(); err == nil || !strings.Contains(err.Error(), "challenges.bad") {
		t.Fatalf("expected sum error for challenges.bad, got %v", err)
	}
}

func TestLoadUsesWeightsFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	weightsPath := filepath.Join(dir, "weights.toml")
	if err := os.WriteFile(weightsPath, []byte("version = \"custom-1\"\n"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[scoring]\nweights_file = \""+weightsPath+"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Scoring.Weights.Version != "custom-1" {
		t.Fatalf("expected weights from file, got %q", cfg.Scoring.Weights.Version)
	}
}

func TestEncodeWeightsRoundTrips(t *testing.T) {
	encoded, err := config.EncodeWeights(config.DefaultWeights())
	if err != nil {
		t.Fatalf("EncodeWeights returned error: %v", err)
	}
	if !strings.Contains(string(encoded), "freestyle") {
		t.Fatalf("expected challenge names in encoded table:\n%s", encoded)
	}
	parsed, err := config.ParseWeights(encoded)
	if err != nil {
		t.Fatalf("ParseWeights returned error: %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("re-parsed table invalid: %v", err)
	}
}
