package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewRegistry(time.Hour, 6*time.Hour, WithClock(clock.now)), clock
}

func TestLifecycle(t *testing.T) {
	reg, clock := newTestRegistry()
	job := reg.Create(KindBreakdown, "ext://a")
	if job.ID == "" || job.Status != StatusQueued {
		t.Fatalf("unexpected new job %+v", job)
	}

	clock.t = clock.t.Add(time.Second)
	if err := reg.Update(job.ID, "pose", 150, "extracting"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := reg.Get(job.ID)
	if got.Status != StatusRunning || got.Stage != "pose" || got.ProgressPercent != 100 {
		t.Fatalf("unexpected running job %+v", got)
	}

	clock.t = clock.t.Add(time.Second)
	if err := reg.Complete(job.ID, 42); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ = reg.Get(job.ID)
	if got.Status != StatusCompleted || got.BreakdownID != 42 || !got.FinishedAt.Equal(clock.t) {
		t.Fatalf("unexpected completed job %+v", got)
	}
}

func TestFailRecordsError(t *testing.T) {
	reg, _ := newTestRegistry()
	job := reg.Create(KindScore, "ext://a")
	if err := reg.Start(job.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := reg.Fail(job.ID, errors.New("boom")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, ok := reg.Get(job.ID)
	if !ok || got.Status != StatusFailed || got.Error != "boom" {
		t.Fatalf("unexpected failed job %+v", got)
	}
}

func TestUnknownJob(t *testing.T) {
	reg, _ := newTestRegistry()
	if err := reg.Start("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Fatal("expected missing job")
	}
}

func TestEvict(t *testing.T) {
	reg, clock := newTestRegistry()
	done := reg.Create(KindBreakdown, "ext://done")
	_ = reg.Complete(done.ID, 1)
	running := reg.Create(KindBreakdown, "ext://running")
	_ = reg.Start(running.ID)

	if removed := reg.Evict(clock.t.Add(30 * time.Minute)); removed != 0 {
		t.Fatalf("nothing should expire yet, removed %d", removed)
	}
	if removed := reg.Evict(clock.t.Add(time.Hour)); removed != 1 {
		t.Fatalf("expected finished job evicted, removed %d", removed)
	}
	if _, ok := reg.Get(running.ID); !ok {
		t.Fatal("running job should survive the TTL")
	}
	if removed := reg.Evict(clock.t.Add(6 * time.Hour)); removed != 1 {
		t.Fatalf("expected stale running job evicted, removed %d", removed)
	}
	if len(reg.List()) != 0 {
		t.Fatalf("expected empty registry, got %v", reg.List())
	}
}

func TestListNewestFirst(t *testing.T) {
	reg, clock := newTestRegistry()
	first := reg.Create(KindBreakdown, "ext://a")
	clock.t = clock.t.Add(time.Second)
	second := reg.Create(KindBreakdown, "ext://b")
	list := reg.List()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := NewRegistry(time.Nanosecond, 0)
	job := reg.Create(KindBreakdown, "ext://a")
	_ = reg.Complete(job.ID, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Millisecond)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for len(reg.List()) != 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not evict finished job")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
