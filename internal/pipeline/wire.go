package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"dancebreak/internal/breakdown"
	"dancebreak/internal/config"
	"dancebreak/internal/identitylock"
	"dancebreak/internal/ingest"
	"dancebreak/internal/jobs"
	"dancebreak/internal/logging"
	"dancebreak/internal/objectstore"
	"dancebreak/internal/pose"
	"dancebreak/internal/scoring"
	"dancebreak/internal/segment"
	"dancebreak/internal/services/llm"
	"dancebreak/internal/steps"
	"dancebreak/internal/tempo"
)

// LLMConfig maps the llm config section onto the client config.
func LLMConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}
}

// NewFromConfig opens the store and builds every collaborator from cfg.
// Close the returned pipeline to release the database and lock backend.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	store, err := breakdown.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open breakdown store: %w", err)
	}
	locker, err := identitylock.New(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("identity lock: %w", err)
	}
	objects, err := objectstore.NewFilesystemStore(cfg.Paths.ObjectsDir, cfg.ObjectStore.Bucket, cfg.ObjectStore.PublicBaseURL)
	if err != nil {
		_ = store.Close()
		_ = locker.Close()
		return nil, err
	}

	ingestor := ingest.NewFromConfig(cfg, objects, tempo.NewAutocorrelationEstimator(), logging.NewComponentLogger(logger, "ingest"))

	var estimator pose.Estimator
	if cfg.Pose.Endpoint != "" {
		estimator = pose.NewHTTPEstimator(cfg.Pose.Endpoint, time.Duration(cfg.Pose.TimeoutSeconds)*time.Second, cfg.Pose.MaxWidth, cfg.Pose.JPEGQuality)
	}
	extractor := pose.NewExtractor(estimator, pose.Options{
		AnalysisFPS:      cfg.Analysis.FPS,
		DefaultSourceFPS: cfg.Analysis.DefaultSourceFPS,
		MinConfidence:    cfg.Analysis.MinKeypointConfidence,
		Workers:          cfg.Pose.Workers,
		FFmpegBinary:     cfg.Ingest.FFmpegBinary,
		FFprobeBinary:    cfg.Ingest.FFprobeBinary,
	}, logging.NewComponentLogger(logger, "pose"))

	segmenter := segment.NewEngine(segment.Options{
		Penalty:              cfg.Analysis.SegmentPenalty,
		BeatsPerSplit:        cfg.Analysis.BeatsPerSplit,
		DefaultGridBPM:       cfg.Analysis.DefaultGridBPM,
		SecondsPerMinSegment: cfg.Analysis.SecondsPerMinSegment,
	}, logging.NewComponentLogger(logger, "segment"))

	// A nil *llm.Client stored in the interface would not compare equal to
	// nil, so the completer stays untyped until a client exists.
	var completer steps.Completer
	if llmCfg := LLMConfig(cfg); llmCfg.Configured() {
		completer = llm.NewClient(llmCfg, llm.WithLogger(logging.NewComponentLogger(logger, "llm")))
	}
	generator := steps.NewGenerator(completer, steps.Options{
		MaxAttempts: cfg.Steps.MaxAttempts,
		RetryDelay:  seconds(cfg.Steps.RetryDelaySeconds),
		Pacing:      seconds(cfg.Steps.PacingSeconds),
	}, logging.NewComponentLogger(logger, "steps"))

	registry := jobs.NewRegistry(
		time.Duration(cfg.Jobs.TTLSeconds)*time.Second,
		time.Duration(cfg.Jobs.MaxAgeSeconds)*time.Second,
		jobs.WithLogger(logging.NewComponentLogger(logger, "jobs")),
	)

	p, err := New(Deps{
		Store:     store,
		Ingestor:  ingestor,
		Extractor: extractor,
		Segmenter: segmenter,
		Generator: generator,
		Scorer:    scoring.NewEngine(cfg.Scoring.Weights, logging.NewComponentLogger(logger, "scoring")),
		Locker:    locker,
		Jobs:      registry,
		Logger:    logging.NewComponentLogger(logger, "pipeline"),
	}, Options{
		DefaultMode:    cfg.Steps.Mode,
		UploadPlayable: cfg.Ingest.UploadPlayable,
	})
	if err != nil {
		_ = store.Close()
		_ = locker.Close()
		return nil, err
	}
	p.closer = store.Close
	return p, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
