package identitylock_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"dancebreak/internal/config"
	"dancebreak/internal/identitylock"
	"dancebreak/internal/testsupport"
)

func TestFileLockerExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first, err := identitylock.NewFileLocker(dir, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileLocker: %v", err)
	}
	second, err := identitylock.NewFileLocker(dir, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileLocker: %v", err)
	}

	release, err := first.Acquire(context.Background(), "ext://a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(first.Path("ext://a")); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := second.Acquire(ctx, "ext://a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while held, got %v", err)
	}

	other, err := second.Acquire(context.Background(), "ext://b")
	if err != nil {
		t.Fatalf("different identity should not block: %v", err)
	}
	_ = other()

	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	again, err := second.Acquire(context.Background(), "ext://a")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = again()
}

func TestFileLockerWaitsForRelease(t *testing.T) {
	locker, err := identitylock.NewFileLocker(t.TempDir(), 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileLocker: %v", err)
	}
	release, err := locker.Acquire(context.Background(), "ext://a")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = release()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	next, err := locker.Acquire(ctx, "ext://a")
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	_ = next()
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	locker, err := identitylock.New(cfg)
	if err != nil {
		t.Fatalf("New file: %v", err)
	}
	if _, ok := locker.(*identitylock.FileLocker); !ok {
		t.Fatalf("expected FileLocker, got %T", locker)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithLockBackend(config.LockBackendNone))
	locker, err = identitylock.New(cfg)
	if err != nil {
		t.Fatalf("New none: %v", err)
	}
	release, err := locker.Acquire(context.Background(), "ext://a")
	if err != nil {
		t.Fatalf("NopLocker Acquire: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("NopLocker release: %v", err)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithLockBackend("carrier-pigeon"))
	if _, err := identitylock.New(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRedisLockerRejectsBadURL(t *testing.T) {
	if _, err := identitylock.NewRedisLocker("", "p:", time.Second, time.Millisecond); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := identitylock.NewRedisLocker("http://not-redis", "p:", time.Second, time.Millisecond); err == nil {
		t.Fatal("expected error for non-redis scheme")
	}
	locker, err := identitylock.NewRedisLocker("redis://127.0.0.1:6379/0", "dancebreak:lock:", time.Second, time.Millisecond)
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	defer locker.Close()
	if key := locker.Key("ext://a"); len(key) != len("dancebreak:lock:")+32 {
		t.Fatalf("unexpected key %q", key)
	}
}
