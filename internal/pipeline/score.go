package pipeline

import (
	"context"
	"log/slog"

	"dancebreak/internal/ingest"
	"dancebreak/internal/jobs"
	"dancebreak/internal/logging"
	"dancebreak/internal/pose"
	"dancebreak/internal/scoring"
	"dancebreak/internal/source"
)

// ScoreRequest asks for a performance score.
type ScoreRequest struct {
	Source              string
	ChallengeType       string
	ChallengeDifficulty string
	// TargetBPM overrides the tempo detected from the audio.
	TargetBPM *float64
	UserID    string
	Progress  pose.ProgressFunc
}

// Score ingests the source, extracts a pose track, and scores it. Scores
// are not cached. Ingestion failure is the only error besides an invalid
// reference or cancellation.
func (p *Pipeline) Score(ctx context.Context, req ScoreRequest) (*scoring.Result, error) {
	src, err := source.Normalize(req.Source)
	if err != nil {
		return nil, err
	}
	r := p.newRun(ctx, jobs.KindScore, src.Identity)

	var media *ingest.Media
	err = r.stage("ingest", 5, func(ctx context.Context, _ *slog.Logger) error {
		var err error
		media, err = p.deps.Ingestor.Ingest(ctx, src, ingest.Request{UserID: req.UserID, SkipAudio: req.TargetBPM != nil})
		return err
	})
	if err != nil {
		r.fail(err)
		return nil, err
	}
	defer func() {
		if err := media.Cleanup(); err != nil {
			r.logger.Debug("media cleanup failed", logging.Error(err))
		}
	}()

	track := p.extract(r, media.Path, req.Progress)
	if err := r.ctx.Err(); err != nil {
		r.fail(err)
		return nil, err
	}

	bpm := req.TargetBPM
	if bpm == nil {
		bpm = media.BPM
	}
	var result scoring.Result
	_ = r.stage("score", 80, func(_ context.Context, logger *slog.Logger) error {
		result = p.deps.Scorer.Score(track, scoring.Request{
			ChallengeType:       req.ChallengeType,
			ChallengeDifficulty: req.ChallengeDifficulty,
			TargetBPM:           bpm,
		})
		logger.Info("performance scored",
			logging.Int("total", result.Total),
			logging.Float64("confidence", result.Confidence),
			logging.String("challenge_type", result.ChallengeType),
		)
		return nil
	})
	r.complete(0)
	return &result, nil
}
