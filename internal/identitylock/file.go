package identitylock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const defaultPollInterval = 250 * time.Millisecond

// FileLocker holds one flock file per identity hash.
type FileLocker struct {
	dir  string
	poll time.Duration
}

// NewFileLocker creates dir if needed and returns a locker rooted there.
func NewFileLocker(dir string, poll time.Duration) (*FileLocker, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("lock directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &FileLocker{dir: dir, poll: poll}, nil
}

// Path returns the lock file used for identity.
func (l *FileLocker) Path(identity string) string {
	return filepath.Join(l.dir, lockName(identity)+".lock")
}

// Acquire implements Locker.
func (l *FileLocker) Acquire(ctx context.Context, identity string) (Release, error) {
	lock := flock.New(l.Path(identity))
	ok, err := lock.TryLockContext(ctx, l.poll)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("acquire identity lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("identity lock %s not acquired", lock.Path())
	}
	return once(lock.Unlock), nil
}

// Close implements Locker.
func (l *FileLocker) Close() error { return nil }

func lockName(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:16])
}
