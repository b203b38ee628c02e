package pipeline

import (
	"context"
	"errors"
	"sync"
)

type flightCall struct {
	done chan struct{}
	res  *Result
	err  error
}

// flightGroup collapses concurrent runs for the same identity. The leader
// runs fn; followers wait for its result or for their own ctx. A follower
// whose leader was cancelled takes over with its own fn.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

func (g *flightGroup) do(ctx context.Context, key string, fn func() (*Result, error)) (*Result, bool, error) {
	for {
		g.mu.Lock()
		if g.calls == nil {
			g.calls = make(map[string]*flightCall)
		}
		c, ok := g.calls[key]
		if !ok {
			c = &flightCall{done: make(chan struct{})}
			g.calls[key] = c
			g.mu.Unlock()
			return g.lead(key, c, fn)
		}
		g.mu.Unlock()

		select {
		case <-c.done:
		case <-ctx.Done():
			return nil, true, ctx.Err()
		}
		if leaderCancelled(c.err) && ctx.Err() == nil {
			continue
		}
		return c.res, true, c.err
	}
}

func (g *flightGroup) lead(key string, c *flightCall, fn func() (*Result, error)) (*Result, bool, error) {
	defer func() {
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
		close(c.done)
	}()
	c.res, c.err = fn()
	return c.res, false, c.err
}

func leaderCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
