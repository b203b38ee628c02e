package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dancebreak/internal/testsupport"
)

const probeJSON = `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":640,"height":360,"avg_frame_rate":"30/1"}],"format":{"duration":"12.500","size":"2048"}}`

type cliTestEnv struct {
	baseDir    string
	stateDir   string
	configPath string
	video      string
}

// setupCLITestEnv writes a config pointing at a temp state dir and stub
// media tools: ffprobe reports a 12.5s clip and ffmpeg always fails, so
// tempo is unknown and segmentation falls back to the beat grid.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("DANCEBREAK_POSE_ENDPOINT", "")
	t.Setenv("DANCEBREAK_REDIS_URL", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffprobe := writeScript(t, binDir, "ffprobe", "cat <<'JSON'\n"+probeJSON+"\nJSON\n")
	ffmpeg := writeScript(t, binDir, "ffmpeg", "exit 1\n")
	ytdlp := writeScript(t, binDir, "yt-dlp", "exit 1\n")

	env := &cliTestEnv{
		baseDir:    base,
		stateDir:   filepath.Join(base, "state"),
		configPath: filepath.Join(base, "dancebreak.toml"),
		video:      filepath.Join(base, "routine.mp4"),
	}
	content := fmt.Sprintf(`[paths]
state_dir = %q

[logging]
level = "error"

[ingest]
ffmpeg_binary = %q
ffprobe_binary = %q
ytdlp_binary = %q
upload_playable = false
min_free_gib = 0
strategy_timeout_seconds = 5

[steps]
mode = "manual"
retry_delay_seconds = 0
pacing_seconds = 0

[lock]
poll_interval_ms = 10
`, env.stateDir, ffmpeg, ffprobe, ytdlp)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	testsupport.WriteFile(t, env.video, 2048)
	return env
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
