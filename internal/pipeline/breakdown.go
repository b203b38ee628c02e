package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dancebreak/internal/breakdown"
	"dancebreak/internal/ingest"
	"dancebreak/internal/jobs"
	"dancebreak/internal/logging"
	"dancebreak/internal/pose"
	"dancebreak/internal/segment"
	"dancebreak/internal/services"
	"dancebreak/internal/source"
	"dancebreak/internal/steps"
)

// Request asks for a breakdown of one source.
type Request struct {
	Source           string
	Mode             string
	TargetDifficulty string
	UserID           string
	// Progress, when set, receives pose extraction progress.
	Progress pose.ProgressFunc
}

// Result is the outcome of a Breakdown call. Failed runs still produce a
// Result with Success false and ErrorMessage set.
type Result struct {
	Breakdown breakdown.Breakdown `json:"breakdown"`
	// CacheHit is set when an existing breakdown was returned.
	CacheHit bool `json:"cache_hit"`
	// Shared is set when this caller waited on another in-flight run.
	Shared             bool   `json:"shared"`
	JobID              string `json:"job_id,omitempty"`
	SegmentationMethod string `json:"segmentation_method,omitempty"`
	LLMCalls           int    `json:"llm_calls"`
	Fallbacks          int    `json:"fallbacks"`
}

// Success reports whether the breakdown succeeded.
func (r *Result) Success() bool {
	return r != nil && r.Breakdown.Success
}

// Breakdown returns the canonical breakdown for req.Source, running the
// pipeline when none exists. Errors are returned only for invalid requests,
// lock acquisition failures, and cancellation.
func (p *Pipeline) Breakdown(ctx context.Context, req Request) (*Result, error) {
	src, err := source.Normalize(req.Source)
	if err != nil {
		return nil, err
	}
	mode, err := p.resolveMode(req.Mode)
	if err != nil {
		return nil, err
	}

	if cached := p.lookup(ctx, src.Identity); cached != nil {
		p.recordHit(ctx, src.Identity, req.UserID)
		return &Result{Breakdown: *cached, CacheHit: true}, nil
	}

	res, shared, err := p.flight.do(ctx, src.Identity, func() (*Result, error) {
		return p.runLocked(ctx, src, req, mode)
	})
	if err != nil {
		return nil, err
	}
	if !shared {
		return res, nil
	}
	if res.Success() {
		p.recordHit(ctx, src.Identity, req.UserID)
	}
	out := *res
	out.Shared = true
	return &out, nil
}

func (p *Pipeline) resolveMode(mode string) (string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = p.opts.DefaultMode
	}
	switch mode {
	case steps.ModeManual, steps.ModeAuto:
		return mode, nil
	default:
		return "", services.Wrap(services.ErrValidation, "pipeline", "mode", fmt.Sprintf("unknown mode %q (expected manual or auto)", mode), nil)
	}
}

// lookup returns the canonical breakdown or nil. Store errors count as a miss.
func (p *Pipeline) lookup(ctx context.Context, identity string) *breakdown.Breakdown {
	cached, err := p.deps.Store.FindCanonical(ctx, identity)
	if err != nil {
		logging.WarnWithContext(p.logger, "cache lookup failed; running pipeline", "cache_lookup_failed",
			logging.String(logging.FieldSourceIdentity, identity),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check storage.breakdown_db"),
			logging.String(logging.FieldImpact, "the video is analysed again"),
		)
		return nil
	}
	return cached
}

func (p *Pipeline) recordHit(ctx context.Context, identity, userID string) {
	if err := p.deps.Store.RecordCacheHit(ctx, identity, userID); err != nil {
		logging.WarnWithContext(p.logger, "failed to record cache hit", "cache_hit_record_failed",
			logging.String(logging.FieldSourceIdentity, identity),
			logging.Error(err),
			logging.String(logging.FieldImpact, "cache hit statistics undercount"),
		)
		return
	}
	p.logger.Info("breakdown served from cache",
		logging.String(logging.FieldSourceIdentity, identity),
		logging.String(logging.FieldEventType, "cache_hit"),
	)
}

func (p *Pipeline) runLocked(ctx context.Context, src source.Source, req Request, mode string) (*Result, error) {
	r := p.newRun(ctx, jobs.KindBreakdown, src.Identity)

	release, err := p.deps.Locker.Acquire(r.ctx, src.Identity)
	if err != nil {
		r.fail(err)
		return nil, fmt.Errorf("acquire identity lock: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			r.logger.Warn("failed to release identity lock", logging.Error(err))
		}
	}()

	// Another process may have finished this identity while we waited.
	if cached := p.lookup(r.ctx, src.Identity); cached != nil {
		r.complete(cached.ID)
		p.recordHit(r.ctx, src.Identity, req.UserID)
		return &Result{Breakdown: *cached, CacheHit: true, JobID: r.jobID}, nil
	}

	res, err := p.execute(r, src, req, mode)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	res.JobID = r.jobID

	if err := r.stage("persist", 95, func(ctx context.Context, logger *slog.Logger) error {
		return p.persist(ctx, logger, &res.Breakdown)
	}); err != nil {
		logging.WarnWithContext(r.logger, "breakdown not persisted", "persistence_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Details(err).Hint),
			logging.String(logging.FieldImpact, "result is returned but not cached"),
		)
	}

	if res.Breakdown.Success {
		r.complete(res.Breakdown.ID)
	} else {
		r.fail(errors.New(res.Breakdown.ErrorMessage))
	}
	return res, nil
}

// execute runs ingest through content. A stage failure is folded into the
// returned breakdown; only cancellation is returned as an error.
func (p *Pipeline) execute(r *run, src source.Source, req Request, mode string) (*Result, error) {
	res := &Result{Breakdown: breakdown.Breakdown{
		SourceIdentity:  src.Identity,
		SourceReference: src.Original,
		Mode:            mode,
		UserID:          req.UserID,
	}}
	b := &res.Breakdown
	fail := func(err error) (*Result, error) {
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		b.Success = false
		b.ErrorMessage = err.Error()
		return res, nil
	}

	var media *ingest.Media
	err := r.stage("ingest", 5, func(ctx context.Context, _ *slog.Logger) error {
		var err error
		media, err = p.deps.Ingestor.Ingest(ctx, src, ingest.Request{UserID: req.UserID, Upload: p.opts.UploadPlayable})
		return err
	})
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := media.Cleanup(); err != nil {
			r.logger.Debug("media cleanup failed", logging.Error(err))
		}
	}()
	b.Title = media.Title
	b.DurationSeconds = media.DurationSeconds
	b.BPM = media.BPM
	b.PlayableMediaURL = media.PlayableURL

	track := p.extract(r, media.Path, req.Progress)
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	var seg segment.Result
	_ = r.stage("segment", 60, func(_ context.Context, logger *slog.Logger) error {
		seg = p.deps.Segmenter.Segment(track, media.BPM, media.DurationSeconds)
		logger.Info("segmentation finished",
			logging.String("method", string(seg.Method)),
			logging.Int("segments", len(seg.Segments)),
		)
		return nil
	})
	b.SegmentationMethod = string(seg.Method)
	res.SegmentationMethod = string(seg.Method)

	var content steps.Content
	err = r.stage("content", 75, func(ctx context.Context, _ *slog.Logger) error {
		var err error
		content, err = p.deps.Generator.Generate(ctx, track, seg.Segments, media.BPM, mode)
		if err != nil {
			return err
		}
		if len(content.Steps) == 0 {
			return services.Wrap(services.ErrContentGenerationFailed, "content", "generate", "no segments to describe", nil)
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}

	b.Steps = content.Steps
	b.RoutineContext = content.Context
	b.DifficultyLevel = content.Context.DifficultyLevel
	if target := strings.TrimSpace(req.TargetDifficulty); target != "" {
		b.DifficultyLevel = target
	}
	b.Success = true
	res.LLMCalls = content.Calls
	res.Fallbacks = content.Fallbacks
	return res, nil
}

// extract runs the pose stage. Extraction failure is soft: the run
// continues with an empty track and segmentation falls back to the grid.
func (p *Pipeline) extract(r *run, path string, progress pose.ProgressFunc) *pose.Track {
	var track *pose.Track
	err := r.stage("pose", 20, func(ctx context.Context, logger *slog.Logger) error {
		var err error
		track, err = p.deps.Extractor.Extract(ctx, path, progress)
		if err != nil {
			return err
		}
		logger.Info("pose track extracted",
			logging.Int("frames", track.Len()),
			logging.Int("frames_with_pose", len(track.ValidIndices())),
		)
		return nil
	})
	if err != nil && r.ctx.Err() == nil {
		wrapped := err
		if !errors.Is(err, services.ErrPoseExtractionEmpty) {
			wrapped = services.Wrap(services.ErrPoseExtractionEmpty, "pose", "extract", "", err)
		}
		logging.WarnWithContext(r.logger, "pose extraction failed; continuing without pose data", "pose_extraction_failed",
			logging.Error(wrapped),
			logging.String(logging.FieldErrorHint, services.Details(err).Hint),
			logging.String(logging.FieldImpact, "segments follow a beat grid and content is templated"),
		)
	}
	if track == nil {
		track = &pose.Track{}
	}
	return track
}

func (p *Pipeline) persist(ctx context.Context, logger *slog.Logger, b *breakdown.Breakdown) error {
	id, err := p.deps.Store.Insert(ctx, b)
	if err != nil {
		return services.Wrap(services.ErrPersistenceFailed, "persist", "insert", "", err)
	}
	logger.Info("breakdown stored",
		logging.Int64(logging.FieldBreakdownID, id),
		logging.Bool("success", b.Success),
		logging.Int("steps", b.TotalSteps()),
	)
	return nil
}
