package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	WorkDir    string `toml:"work_dir"`
	LogDir     string `toml:"log_dir"`
	ObjectsDir string `toml:"objects_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Ingest contains media acquisition settings.
type Ingest struct {
	YTDLPBinary            string   `toml:"ytdlp_binary"`
	FFmpegBinary           string   `toml:"ffmpeg_binary"`
	FFprobeBinary          string   `toml:"ffprobe_binary"`
	Profiles               []string `toml:"profiles"`
	StrategyTimeoutSeconds int      `toml:"strategy_timeout_seconds"`
	MinFileBytes           int64    `toml:"min_file_bytes"`
	DefaultDurationSeconds float64  `toml:"default_duration_seconds"`
	CookiesFile            string   `toml:"cookies_file"`
	InstagramCookiesFile   string   `toml:"instagram_cookies_file"`
	UploadPlayable         bool     `toml:"upload_playable"`
	MinFreeGiB             int      `toml:"min_free_gib"`
}

// Pose contains settings for the remote pose estimator.
type Pose struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxWidth       int    `toml:"max_width"`
	JPEGQuality    int    `toml:"jpeg_quality"`
	Workers        int    `toml:"workers"`
}

// Analysis contains sampling and segmentation parameters.
type Analysis struct {
	FPS                   float64 `toml:"fps"`
	DefaultSourceFPS      float64 `toml:"default_source_fps"`
	MinKeypointConfidence float64 `toml:"min_keypoint_confidence"`
	SegmentPenalty        float64 `toml:"segment_penalty"`
	BeatsPerSplit         int     `toml:"beats_per_split"`
	DefaultGridBPM        float64 `toml:"default_grid_bpm"`
	SecondsPerMinSegment  float64 `toml:"seconds_per_min_segment"`
}

// Steps contains step content generation settings.
type Steps struct {
	Mode              string  `toml:"mode"`
	MaxAttempts       int     `toml:"max_attempts"`
	RetryDelaySeconds float64 `toml:"retry_delay_seconds"`
	PacingSeconds     float64 `toml:"pacing_seconds"`
}

// LLM contains LLM connection settings used by auto step generation.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Scoring points at an optional external weight table.
type Scoring struct {
	WeightsFile string `toml:"weights_file"`

	// Weights is resolved during Load from the built-in table and WeightsFile.
	Weights WeightTable `toml:"-"`
}

// Storage contains persistence settings.
type Storage struct {
	BreakdownDB string `toml:"breakdown_db"`
}

// Lock selects the cross-process identity lock backend.
type Lock struct {
	Backend        string `toml:"backend"`
	Dir            string `toml:"dir"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	// TTLSeconds is the redis key expiry. Held keys are refreshed every
	// third of it, so it only limits how long a crashed holder blocks.
	TTLSeconds     int    `toml:"ttl_seconds"`
}

// Redis contains connection settings for the redis lock backend.
type Redis struct {
	URL       string `toml:"url"`
	KeyPrefix string `toml:"key_prefix"`
}

// Jobs contains job registry retention settings.
type Jobs struct {
	TTLSeconds           int `toml:"ttl_seconds"`
	MaxAgeSeconds        int `toml:"max_age_seconds"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// ObjectStore contains settings for the playable media store.
type ObjectStore struct {
	Bucket            string `toml:"bucket"`
	KeyPrefix         string `toml:"key_prefix"`
	PublicBaseURL     string `toml:"public_base_url"`
	PresignTTLSeconds int    `toml:"presign_ttl_seconds"`
}

// Config encapsulates all configuration values for dancebreak.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Logging     Logging     `toml:"logging"`
	Ingest      Ingest      `toml:"ingest"`
	Pose        Pose        `toml:"pose"`
	Analysis    Analysis    `toml:"analysis"`
	Steps       Steps       `toml:"steps"`
	LLM         LLM         `toml:"llm"`
	Scoring     Scoring     `toml:"scoring"`
	Storage     Storage     `toml:"storage"`
	Lock        Lock        `toml:"lock"`
	Redis       Redis       `toml:"redis"`
	Jobs        Jobs        `toml:"jobs"`
	ObjectStore ObjectStore `toml:"objectstore"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dancebreak/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and the scoring weight table resolved.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dancebreak.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, work, log, object, and lock directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.WorkDir, c.Paths.LogDir, c.Paths.ObjectsDir}
	if c.Lock.Backend == LockBackendFile {
		dirs = append(dirs, c.Lock.Dir)
	}
	if db := strings.TrimSpace(c.Storage.BreakdownDB); db != "" {
		dirs = append(dirs, filepath.Dir(db))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StepsAuto reports whether step content should be generated by the LLM by default.
func (c *Config) StepsAuto() bool {
	return c.Steps.Mode == StepsModeAuto
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
