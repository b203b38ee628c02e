package config

// Step content modes.
const (
	StepsModeManual = "manual"
	StepsModeAuto   = "auto"
)

// Identity lock backends.
const (
	LockBackendFile  = "file"
	LockBackendRedis = "redis"
	LockBackendNone  = "none"
)

const (
	defaultStateDir               = "~/.local/share/dancebreak"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultYTDLPBinary            = "yt-dlp"
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultStrategyTimeoutSeconds = 120
	defaultMinFileBytes           = 1024
	defaultDurationSeconds        = 30.0
	defaultMinFreeGiB             = 2
	defaultPoseTimeoutSeconds     = 30
	defaultPoseMaxWidth           = 640
	defaultPoseJPEGQuality        = 85
	defaultPoseWorkers            = 1
	defaultAnalysisFPS            = 15.0
	defaultSourceFPS              = 30.0
	defaultSegmentPenalty         = 5.0
	defaultBeatsPerSplit          = 4
	defaultGridBPM                = 120.0
	defaultSecondsPerMinSegment   = 2.0
	defaultStepsMaxAttempts       = 3
	defaultStepsRetryDelay        = 2.0
	defaultStepsPacing            = 2.0
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "openai/gpt-4o"
	defaultLLMReferer             = "https://github.com/dancebreak/dancebreak"
	defaultLLMTitle               = "dancebreak"
	defaultLLMTemperature         = 0.7
	defaultLLMMaxTokens           = 1000
	defaultLLMTimeoutSeconds      = 60
	defaultLockPollIntervalMS     = 250
	defaultLockTTLSeconds         = 900
	defaultRedisKeyPrefix         = "dancebreak:lock:"
	defaultJobsTTLSeconds         = 3600
	defaultJobsMaxAgeSeconds      = 6 * 3600
	defaultJobsSweepSeconds       = 60
	defaultObjectKeyPrefix        = "dance-breakdowns"
	defaultPresignTTLSeconds      = 7 * 24 * 3600
)

var defaultIngestProfiles = []string{"ios", "android", "web_low"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		// Directories under the state dir are derived in normalize so a
		// configured paths.state_dir moves them too.
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Ingest: Ingest{
			YTDLPBinary:            defaultYTDLPBinary,
			FFmpegBinary:           defaultFFmpegBinary,
			FFprobeBinary:          defaultFFprobeBinary,
			Profiles:               append([]string(nil), defaultIngestProfiles...),
			StrategyTimeoutSeconds: defaultStrategyTimeoutSeconds,
			MinFileBytes:           defaultMinFileBytes,
			DefaultDurationSeconds: defaultDurationSeconds,
			UploadPlayable:         true,
			MinFreeGiB:             defaultMinFreeGiB,
		},
		Pose: Pose{
			TimeoutSeconds: defaultPoseTimeoutSeconds,
			MaxWidth:       defaultPoseMaxWidth,
			JPEGQuality:    defaultPoseJPEGQuality,
			Workers:        defaultPoseWorkers,
		},
		Analysis: Analysis{
			FPS:                  defaultAnalysisFPS,
			DefaultSourceFPS:     defaultSourceFPS,
			SegmentPenalty:       defaultSegmentPenalty,
			BeatsPerSplit:        defaultBeatsPerSplit,
			DefaultGridBPM:       defaultGridBPM,
			SecondsPerMinSegment: defaultSecondsPerMinSegment,
		},
		Steps: Steps{
			Mode:              StepsModeManual,
			MaxAttempts:       defaultStepsMaxAttempts,
			RetryDelaySeconds: defaultStepsRetryDelay,
			PacingSeconds:     defaultStepsPacing,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			Temperature:    defaultLLMTemperature,
			MaxTokens:      defaultLLMMaxTokens,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Scoring: Scoring{
			Weights: DefaultWeights(),
		},
		Lock: Lock{
			Backend:        LockBackendFile,
			PollIntervalMS: defaultLockPollIntervalMS,
			TTLSeconds:     defaultLockTTLSeconds,
		},
		Redis: Redis{
			KeyPrefix: defaultRedisKeyPrefix,
		},
		Jobs: Jobs{
			TTLSeconds:           defaultJobsTTLSeconds,
			MaxAgeSeconds:        defaultJobsMaxAgeSeconds,
			SweepIntervalSeconds: defaultJobsSweepSeconds,
		},
		ObjectStore: ObjectStore{
			KeyPrefix:         defaultObjectKeyPrefix,
			PresignTTLSeconds: defaultPresignTTLSeconds,
		},
	}
}
