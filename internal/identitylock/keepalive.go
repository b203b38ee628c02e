package identitylock

import (
	"context"
	"time"
)

// keepAlive calls extend every interval until the returned stop func runs
// or extend reports the lock now belongs to someone else. Extend errors are
// retried on the next tick. stop waits for the loop to exit.
func keepAlive(interval time.Duration, extend func(context.Context) (bool, error)) (stop func()) {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			held, err := extend(ctx)
			if err == nil && !held {
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
