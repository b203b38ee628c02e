package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateSteps(); err != nil {
		return err
	}
	if err := c.validateLock(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring weights: %w", err)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if strings.TrimSpace(c.Storage.BreakdownDB) == "" {
		return errors.New("storage.breakdown_db must be set")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.MinKeypointConfidence < 0 || c.Analysis.MinKeypointConfidence > 1 {
		return errors.New("analysis.min_keypoint_confidence must be between 0 and 1")
	}
	if c.Analysis.FPS > c.Analysis.DefaultSourceFPS*4 {
		return fmt.Errorf("analysis.fps %.1f is implausibly high", c.Analysis.FPS)
	}
	return ensurePositiveMap(map[string]float64{
		"analysis.fps":                     c.Analysis.FPS,
		"analysis.segment_penalty":         c.Analysis.SegmentPenalty,
		"analysis.beats_per_split":         float64(c.Analysis.BeatsPerSplit),
		"analysis.default_grid_bpm":        c.Analysis.DefaultGridBPM,
		"analysis.seconds_per_min_segment": c.Analysis.SecondsPerMinSegment,
		"ingest.default_duration_seconds":  c.Ingest.DefaultDurationSeconds,
	})
}

func (c *Config) validateSteps() error {
	switch c.Steps.Mode {
	case StepsModeManual, StepsModeAuto:
	default:
		return fmt.Errorf("steps.mode must be %q or %q, got %q", StepsModeManual, StepsModeAuto, c.Steps.Mode)
	}
	if c.Steps.MaxAttempts < 1 {
		return errors.New("steps.max_attempts must be >= 1")
	}
	return nil
}

func (c *Config) validateLock() error {
	switch c.Lock.Backend {
	case LockBackendFile:
		if strings.TrimSpace(c.Lock.Dir) == "" {
			return errors.New("lock.dir must be set when lock.backend is file")
		}
	case LockBackendRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			return errors.New("redis.url must be set when lock.backend is redis (or set DANCEBREAK_REDIS_URL)")
		}
	case LockBackendNone:
	default:
		return fmt.Errorf("lock.backend must be one of file, redis, none; got %q", c.Lock.Backend)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]float64) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
