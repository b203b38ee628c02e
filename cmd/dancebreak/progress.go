package main

import (
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"

	"dancebreak/internal/pose"
)

const progressTemplate = `{{ string . "prefix" }} {{counters . }} {{bar . }} {{percent . }} {{etime . "%s elapsed"}}`

// frameProgress renders pose extraction progress on a terminal.
type frameProgress struct {
	mu  sync.Mutex
	out io.Writer
	bar *pb.ProgressBar
}

func newFrameProgress(out io.Writer) *frameProgress {
	return &frameProgress{out: out}
}

// Func returns the callback handed to the pipeline.
func (p *frameProgress) Func() pose.ProgressFunc {
	return func(done, total int) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.bar == nil {
			p.bar = pb.ProgressBarTemplate(progressTemplate).New(total)
			p.bar.SetWriter(p.out)
			p.bar.Set("prefix", "pose")
			p.bar.Start()
		}
		if int64(total) != p.bar.Total() {
			p.bar.SetTotal(int64(total))
		}
		p.bar.SetCurrent(int64(done))
	}
}

// Finish stops the bar if it was ever started.
func (p *frameProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

// progressFor returns a progress callback when out is an interactive
// terminal, and a no-op finish otherwise.
func progressFor(out io.Writer, enabled bool) (pose.ProgressFunc, func()) {
	if !enabled || !shouldColorize(out) {
		return nil, func() {}
	}
	p := newFrameProgress(out)
	return p.Func(), p.Finish
}
