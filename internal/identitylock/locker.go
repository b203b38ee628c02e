package identitylock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dancebreak/internal/config"
)

// Release frees a held lock. It is safe to call more than once.
type Release func() error

// Locker grants exclusive access to a source identity.
type Locker interface {
	// Acquire blocks until the identity is free or ctx is done.
	Acquire(ctx context.Context, identity string) (Release, error)
	Close() error
}

// New builds the locker selected by cfg.Lock.Backend.
func New(cfg *config.Config) (Locker, error) {
	if cfg == nil {
		return NopLocker{}, nil
	}
	poll := time.Duration(cfg.Lock.PollIntervalMS) * time.Millisecond
	switch cfg.Lock.Backend {
	case config.LockBackendFile, "":
		return NewFileLocker(cfg.Lock.Dir, poll)
	case config.LockBackendRedis:
		return NewRedisLocker(cfg.Redis.URL, cfg.Redis.KeyPrefix, time.Duration(cfg.Lock.TTLSeconds)*time.Second, poll)
	case config.LockBackendNone:
		return NopLocker{}, nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
}

// NopLocker grants every request immediately.
type NopLocker struct{}

// Acquire implements Locker.
func (NopLocker) Acquire(ctx context.Context, _ string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() error { return nil }, nil
}

// Close implements Locker.
func (NopLocker) Close() error { return nil }

func once(fn func() error) Release {
	var (
		o   sync.Once
		err error
	)
	return func() error {
		o.Do(func() { err = fn() })
		return err
	}
}
