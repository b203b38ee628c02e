package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dancebreak/internal/logging"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kinds of work the pipeline registers.
const (
	KindBreakdown = "breakdown"
	KindScore     = "score"
)

// ErrUnknownJob is returned when an id is not in the registry.
var ErrUnknownJob = errors.New("unknown job")

// Job is a snapshot of one run.
type Job struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	SourceIdentity  string    `json:"source_identity"`
	Status          Status    `json:"status"`
	Stage           string    `json:"stage,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	Message         string    `json:"message,omitempty"`
	Error           string    `json:"error,omitempty"`
	BreakdownID     int64     `json:"breakdown_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}

// Registry holds jobs in memory.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	ttl    time.Duration
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the registry clock.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger attaches a logger used for eviction sweeps.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry returns an empty registry. ttl bounds how long finished jobs
// stay visible; maxAge bounds any job.
func NewRegistry(ttl, maxAge time.Duration, opts ...Option) *Registry {
	r := &Registry{
		jobs:   make(map[string]*Job),
		ttl:    ttl,
		maxAge: maxAge,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a queued job.
func (r *Registry) Create(kind, identity string) Job {
	now := r.now().UTC()
	job := &Job{
		ID:             uuid.NewString(),
		Kind:           kind,
		SourceIdentity: identity,
		Status:         StatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return *job
}

// Start marks a job running.
func (r *Registry) Start(id string) error {
	return r.mutate(id, func(job *Job) {
		job.Status = StatusRunning
	})
}

// Update records stage progress. percent is clamped to [0,100].
func (r *Registry) Update(id, stage string, percent float64, message string) error {
	return r.mutate(id, func(job *Job) {
		if job.Status == StatusQueued {
			job.Status = StatusRunning
		}
		job.Stage = stage
		job.ProgressPercent = clampPercent(percent)
		job.Message = message
	})
}

// Complete marks a job finished successfully.
func (r *Registry) Complete(id string, breakdownID int64) error {
	return r.mutate(id, func(job *Job) {
		job.Status = StatusCompleted
		job.ProgressPercent = 100
		job.BreakdownID = breakdownID
		job.FinishedAt = job.UpdatedAt
	})
}

// Fail marks a job failed with err.
func (r *Registry) Fail(id string, err error) error {
	return r.mutate(id, func(job *Job) {
		job.Status = StatusFailed
		if err != nil {
			job.Error = err.Error()
		}
		job.FinishedAt = job.UpdatedAt
	})
}

// Get returns a copy of the job.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns all jobs, newest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Evict drops finished jobs older than the TTL and any job older than the
// maximum age. It returns the number removed.
func (r *Registry) Evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, job := range r.jobs {
		expired := r.ttl > 0 && job.Status.Finished() && now.Sub(job.FinishedAt) >= r.ttl
		stale := r.maxAge > 0 && now.Sub(job.CreatedAt) >= r.maxAge
		if expired || stale {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Run sweeps the registry every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := r.Evict(r.now()); removed > 0 {
				r.logger.Debug("evicted finished jobs",
					logging.Int("removed", removed),
					logging.String(logging.FieldEventType, "jobs_evicted"),
				)
			}
		}
	}
}

func (r *Registry) mutate(id string, fn func(*Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrUnknownJob
	}
	job.UpdatedAt = r.now().UTC()
	fn(job)
	return nil
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
