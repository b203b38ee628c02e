package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeIngest(); err != nil {
		return err
	}
	c.normalizePose()
	c.normalizeAnalysis()
	c.normalizeSteps()
	c.normalizeLLM()
	if err := c.normalizeScoring(); err != nil {
		return err
	}
	if err := c.normalizeLock(); err != nil {
		return err
	}
	c.normalizeJobs()
	c.normalizeObjectStore()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	derived := []struct {
		key   string
		value *string
		child string
	}{
		{"paths.work_dir", &c.Paths.WorkDir, "work"},
		{"paths.log_dir", &c.Paths.LogDir, "logs"},
		{"paths.objects_dir", &c.Paths.ObjectsDir, "objects"},
	}
	for _, d := range derived {
		if strings.TrimSpace(*d.value) == "" {
			*d.value = filepath.Join(c.Paths.StateDir, d.child)
		}
		if *d.value, err = expandPath(*d.value); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}
	if strings.TrimSpace(c.Storage.BreakdownDB) == "" {
		c.Storage.BreakdownDB = filepath.Join(c.Paths.StateDir, "breakdowns.db")
	}
	if c.Storage.BreakdownDB, err = expandPath(c.Storage.BreakdownDB); err != nil {
		return fmt.Errorf("storage.breakdown_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeIngest() error {
	var err error
	c.Ingest.YTDLPBinary = defaultString(c.Ingest.YTDLPBinary, defaultYTDLPBinary)
	c.Ingest.FFmpegBinary = defaultString(c.Ingest.FFmpegBinary, defaultFFmpegBinary)
	c.Ingest.FFprobeBinary = defaultString(c.Ingest.FFprobeBinary, defaultFFprobeBinary)

	profiles := make([]string, 0, len(c.Ingest.Profiles))
	seen := make(map[string]struct{}, len(c.Ingest.Profiles))
	for _, p := range c.Ingest.Profiles {
		normalized := strings.ToLower(strings.TrimSpace(p))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		profiles = append(profiles, normalized)
	}
	if len(profiles) == 0 {
		profiles = append(profiles, defaultIngestProfiles...)
	}
	c.Ingest.Profiles = profiles

	if c.Ingest.StrategyTimeoutSeconds <= 0 {
		c.Ingest.StrategyTimeoutSeconds = defaultStrategyTimeoutSeconds
	}
	if c.Ingest.MinFileBytes <= 0 {
		c.Ingest.MinFileBytes = defaultMinFileBytes
	}
	if c.Ingest.DefaultDurationSeconds <= 0 {
		c.Ingest.DefaultDurationSeconds = defaultDurationSeconds
	}
	if c.Ingest.CookiesFile == "" {
		if value, ok := os.LookupEnv("DANCEBREAK_COOKIES_FILE"); ok {
			c.Ingest.CookiesFile = strings.TrimSpace(value)
		}
	}
	if c.Ingest.CookiesFile, err = expandPath(strings.TrimSpace(c.Ingest.CookiesFile)); err != nil {
		return fmt.Errorf("ingest.cookies_file: %w", err)
	}
	if c.Ingest.InstagramCookiesFile, err = expandPath(strings.TrimSpace(c.Ingest.InstagramCookiesFile)); err != nil {
		return fmt.Errorf("ingest.instagram_cookies_file: %w", err)
	}
	if c.Ingest.MinFreeGiB < 0 {
		c.Ingest.MinFreeGiB = 0
	}
	return nil
}

func (c *Config) normalizePose() {
	c.Pose.Endpoint = strings.TrimSpace(c.Pose.Endpoint)
	if c.Pose.Endpoint == "" {
		if value, ok := os.LookupEnv("DANCEBREAK_POSE_ENDPOINT"); ok {
			c.Pose.Endpoint = strings.TrimSpace(value)
		}
	}
	if c.Pose.TimeoutSeconds <= 0 {
		c.Pose.TimeoutSeconds = defaultPoseTimeoutSeconds
	}
	if c.Pose.MaxWidth <= 0 {
		c.Pose.MaxWidth = defaultPoseMaxWidth
	}
	if c.Pose.JPEGQuality <= 0 || c.Pose.JPEGQuality > 100 {
		c.Pose.JPEGQuality = defaultPoseJPEGQuality
	}
	if c.Pose.Workers <= 0 {
		c.Pose.Workers = defaultPoseWorkers
	}
}

func (c *Config) normalizeAnalysis() {
	if c.Analysis.FPS <= 0 {
		c.Analysis.FPS = defaultAnalysisFPS
	}
	if c.Analysis.DefaultSourceFPS <= 0 {
		c.Analysis.DefaultSourceFPS = defaultSourceFPS
	}
	if c.Analysis.SegmentPenalty <= 0 {
		c.Analysis.SegmentPenalty = defaultSegmentPenalty
	}
	if c.Analysis.BeatsPerSplit <= 0 {
		c.Analysis.BeatsPerSplit = defaultBeatsPerSplit
	}
	if c.Analysis.DefaultGridBPM <= 0 {
		c.Analysis.DefaultGridBPM = defaultGridBPM
	}
	if c.Analysis.SecondsPerMinSegment <= 0 {
		c.Analysis.SecondsPerMinSegment = defaultSecondsPerMinSegment
	}
}

func (c *Config) normalizeSteps() {
	c.Steps.Mode = strings.ToLower(strings.TrimSpace(c.Steps.Mode))
	if c.Steps.Mode == "" {
		c.Steps.Mode = StepsModeManual
	}
	if c.Steps.MaxAttempts <= 0 {
		c.Steps.MaxAttempts = defaultStepsMaxAttempts
	}
	if c.Steps.RetryDelaySeconds < 0 {
		c.Steps.RetryDelaySeconds = 0
	}
	if c.Steps.PacingSeconds < 0 {
		c.Steps.PacingSeconds = 0
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = defaultString(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = defaultString(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = defaultString(c.LLM.Referer, defaultLLMReferer)
	c.LLM.Title = defaultString(c.LLM.Title, defaultLLMTitle)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeScoring() error {
	var err error
	c.Scoring.WeightsFile = strings.TrimSpace(c.Scoring.WeightsFile)
	if c.Scoring.WeightsFile == "" {
		c.Scoring.Weights = DefaultWeights()
		return nil
	}
	if c.Scoring.WeightsFile, err = expandPath(c.Scoring.WeightsFile); err != nil {
		return fmt.Errorf("scoring.weights_file: %w", err)
	}
	weights, err := LoadWeights(c.Scoring.WeightsFile)
	if err != nil {
		return fmt.Errorf("scoring.weights_file: %w", err)
	}
	c.Scoring.Weights = weights
	return nil
}

func (c *Config) normalizeLock() error {
	var err error
	c.Lock.Backend = strings.ToLower(strings.TrimSpace(c.Lock.Backend))
	if c.Lock.Backend == "" {
		c.Lock.Backend = LockBackendFile
	}
	if strings.TrimSpace(c.Lock.Dir) == "" {
		c.Lock.Dir = filepath.Join(c.Paths.StateDir, "locks")
	}
	if c.Lock.Dir, err = expandPath(c.Lock.Dir); err != nil {
		return fmt.Errorf("lock.dir: %w", err)
	}
	if c.Lock.PollIntervalMS <= 0 {
		c.Lock.PollIntervalMS = defaultLockPollIntervalMS
	}
	if c.Lock.TTLSeconds <= 0 {
		c.Lock.TTLSeconds = defaultLockTTLSeconds
	}
	c.Redis.URL = strings.TrimSpace(c.Redis.URL)
	if c.Redis.URL == "" {
		if value, ok := os.LookupEnv("DANCEBREAK_REDIS_URL"); ok {
			c.Redis.URL = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Redis.KeyPrefix) == "" {
		c.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
	return nil
}

func (c *Config) normalizeJobs() {
	if c.Jobs.TTLSeconds <= 0 {
		c.Jobs.TTLSeconds = defaultJobsTTLSeconds
	}
	if c.Jobs.MaxAgeSeconds <= 0 {
		c.Jobs.MaxAgeSeconds = defaultJobsMaxAgeSeconds
	}
	if c.Jobs.SweepIntervalSeconds <= 0 {
		c.Jobs.SweepIntervalSeconds = defaultJobsSweepSeconds
	}
}

func (c *Config) normalizeObjectStore() {
	c.ObjectStore.Bucket = strings.TrimSpace(c.ObjectStore.Bucket)
	c.ObjectStore.KeyPrefix = strings.Trim(strings.TrimSpace(c.ObjectStore.KeyPrefix), "/")
	if c.ObjectStore.KeyPrefix == "" {
		c.ObjectStore.KeyPrefix = defaultObjectKeyPrefix
	}
	c.ObjectStore.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.ObjectStore.PublicBaseURL), "/")
	if c.ObjectStore.PresignTTLSeconds <= 0 {
		c.ObjectStore.PresignTTLSeconds = defaultPresignTTLSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
