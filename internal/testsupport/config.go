package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dancebreak/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	state := filepath.Join(base, "state")
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = state
	cfgVal.Paths.WorkDir = filepath.Join(state, "work")
	cfgVal.Paths.LogDir = filepath.Join(state, "logs")
	cfgVal.Paths.ObjectsDir = filepath.Join(state, "objects")
	cfgVal.Storage.BreakdownDB = filepath.Join(state, "breakdowns.db")
	cfgVal.Lock.Dir = filepath.Join(state, "locks")
	cfgVal.Lock.PollIntervalMS = 10
	cfgVal.Steps.RetryDelaySeconds = 0
	cfgVal.Steps.PacingSeconds = 0
	cfgVal.Ingest.UploadPlayable = false
	cfgVal.LLM.APIKey = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMKey sets the language model API key on the test config.
func WithLLMKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithLockBackend overrides the identity lock backend.
func WithLockBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Lock.Backend = backend
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default dancebreak external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "yt-dlp"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
