package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dancebreak/internal/jobs"
	"dancebreak/internal/logging"
	"dancebreak/internal/services"
)

// run carries the per-execution context shared by every stage.
type run struct {
	ctx    context.Context
	jobID  string
	jobs   *jobs.Registry
	logger *slog.Logger
	start  time.Time
}

func (p *Pipeline) newRun(ctx context.Context, kind, identity string) *run {
	job := p.deps.Jobs.Create(kind, identity)
	ctx = services.WithSourceIdentity(ctx, identity)
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	_ = p.deps.Jobs.Start(job.ID)
	return &run{
		ctx:    ctx,
		jobID:  job.ID,
		jobs:   p.deps.Jobs,
		logger: logging.WithContext(ctx, p.logger),
		start:  time.Now(),
	}
}

// stage runs fn with stage_start and stage_complete logs and job progress.
func (r *run) stage(name string, percent float64, fn func(ctx context.Context, logger *slog.Logger) error) error {
	ctx := services.WithStage(r.ctx, name)
	logger := logging.WithContext(ctx, r.logger)
	_ = r.jobs.Update(r.jobID, name, percent, name+" started")
	started := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	err := fn(ctx, logger)
	if err != nil {
		attrs := append(logging.Failure(err),
			logging.EventType("stage_failed"),
			logging.Duration("stage_duration", time.Since(started)),
		)
		logger.Info("stage ended with error", logging.Args(attrs...)...)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(started)),
	)
	return nil
}

func (r *run) complete(breakdownID int64) {
	_ = r.jobs.Complete(r.jobID, breakdownID)
	r.logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.BreakdownID(breakdownID),
		logging.Duration("run_duration", time.Since(r.start)),
	)
}

func (r *run) fail(err error) {
	_ = r.jobs.Fail(r.jobID, err)
	attrs := append(logging.Failure(err), logging.Duration("run_duration", time.Since(r.start)))
	logging.ErrorWithContext(r.logger, "run failed", "run_failed", attrs...)
}
