package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dancebreak/internal/breakdown"
	"dancebreak/internal/identitylock"
	"dancebreak/internal/ingest"
	"dancebreak/internal/jobs"
	"dancebreak/internal/logging"
	"dancebreak/internal/pose"
	"dancebreak/internal/scoring"
	"dancebreak/internal/segment"
	"dancebreak/internal/source"
	"dancebreak/internal/steps"
)

// Ingestor acquires media for a source.
type Ingestor interface {
	Ingest(ctx context.Context, src source.Source, req ingest.Request) (*ingest.Media, error)
}

// TrackExtractor builds a pose track from a media file.
type TrackExtractor interface {
	Extract(ctx context.Context, path string, progress pose.ProgressFunc) (*pose.Track, error)
}

// Store is the persistence the pipeline needs.
type Store interface {
	Insert(ctx context.Context, b *breakdown.Breakdown) (int64, error)
	FindCanonical(ctx context.Context, identity string) (*breakdown.Breakdown, error)
	RecordCacheHit(ctx context.Context, identity, userID string) error
	Stats(ctx context.Context) (breakdown.Stats, error)
	ReconcileDuplicates(ctx context.Context) (breakdown.ReconcileResult, error)
}

// Deps are the collaborators of a Pipeline. Locker and Jobs default to a
// no-op locker and a fresh registry.
type Deps struct {
	Store     Store
	Ingestor  Ingestor
	Extractor TrackExtractor
	Segmenter *segment.Engine
	Generator *steps.Generator
	Scorer    *scoring.Engine
	Locker    identitylock.Locker
	Jobs      *jobs.Registry
	Logger    *slog.Logger
}

// Options tunes pipeline behaviour.
type Options struct {
	DefaultMode    string
	UploadPlayable bool
}

// Pipeline runs breakdown and scoring requests.
type Pipeline struct {
	deps   Deps
	opts   Options
	flight flightGroup
	logger *slog.Logger
	now    func() time.Time
	closer func() error
}

// New validates deps and builds a pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline requires a store")
	case deps.Ingestor == nil:
		return nil, errors.New("pipeline requires an ingestor")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline requires a pose extractor")
	case deps.Segmenter == nil:
		return nil, errors.New("pipeline requires a segmenter")
	case deps.Generator == nil:
		return nil, errors.New("pipeline requires a step generator")
	case deps.Scorer == nil:
		return nil, errors.New("pipeline requires a scorer")
	}
	if deps.Locker == nil {
		deps.Locker = identitylock.NopLocker{}
	}
	if deps.Jobs == nil {
		deps.Jobs = jobs.NewRegistry(time.Hour, 6*time.Hour)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = steps.ModeManual
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger,
		now:    time.Now,
	}, nil
}

// Jobs exposes the job registry.
func (p *Pipeline) Jobs() *jobs.Registry {
	return p.deps.Jobs
}

// Statistics reports store activity.
func (p *Pipeline) Statistics(ctx context.Context) (breakdown.Stats, error) {
	return p.deps.Store.Stats(ctx)
}

// ReconcileDuplicates keeps one breakdown per identity.
func (p *Pipeline) ReconcileDuplicates(ctx context.Context) (breakdown.ReconcileResult, error) {
	result, err := p.deps.Store.ReconcileDuplicates(ctx)
	if err != nil {
		return breakdown.ReconcileResult{}, err
	}
	p.logger.Info("duplicate breakdowns reconciled",
		logging.Int("removed_count", result.RemovedCount),
		logging.Int("sources_processed", result.SourcesProcessed),
		logging.String(logging.FieldEventType, "reconcile_complete"),
	)
	return result, nil
}

// Close releases the locker and any resources opened by NewFromConfig.
func (p *Pipeline) Close() error {
	var errs []error
	if p.deps.Locker != nil {
		errs = append(errs, p.deps.Locker.Close())
	}
	if p.closer != nil {
		errs = append(errs, p.closer())
	}
	return errors.Join(errs...)
}
