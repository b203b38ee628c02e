package pose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"dancebreak/internal/logging"
	"dancebreak/internal/media/ffmpeg"
	"dancebreak/internal/media/ffprobe"
	"dancebreak/internal/services"
)

// Estimator detects body landmarks on a single image.
type Estimator interface {
	Infer(ctx context.Context, img image.Image) ([]Landmark, error)
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(ctx context.Context, img image.Image) ([]Landmark, error)

// Infer calls f.
func (f EstimatorFunc) Infer(ctx context.Context, img image.Image) ([]Landmark, error) {
	return f(ctx, img)
}

// FrameSource yields decoded frames in order. Next returns io.EOF at the end.
type FrameSource interface {
	Next() (image.Image, int, error)
	Skip() error
	Close() error
}

// VideoInfo carries the probe data the extractor needs.
type VideoInfo struct {
	SourceFPS   float64
	Width       int
	Height      int
	FrameCount  int
	DurationSec float64
}

// Opener probes a media file and opens a frame source for it.
type Opener func(ctx context.Context, path string) (FrameSource, VideoInfo, error)

// ProgressFunc receives the number of sampled frames processed and the
// expected total (zero when unknown).
type ProgressFunc func(done, total int)

// Options configures an Extractor.
type Options struct {
	AnalysisFPS      float64
	DefaultSourceFPS float64
	MinConfidence    float64
	Workers          int
	FFmpegBinary     string
	FFprobeBinary    string
}

// Extractor samples a video at a fixed analysis rate and runs pose estimation
// on each sampled frame.
type Extractor struct {
	estimator Estimator
	opts      Options
	open      Opener
	logger    *slog.Logger
}

// NewExtractor builds an extractor that decodes media with ffmpeg.
func NewExtractor(estimator Estimator, opts Options, logger *slog.Logger) *Extractor {
	if opts.AnalysisFPS <= 0 {
		opts.AnalysisFPS = 15
	}
	if opts.DefaultSourceFPS <= 0 {
		opts.DefaultSourceFPS = 30
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Extractor{estimator: estimator, opts: opts, logger: logger}
	e.open = e.openFFmpeg
	return e
}

// WithOpener replaces the frame source opener.
func (e *Extractor) WithOpener(open Opener) *Extractor {
	if open != nil {
		e.open = open
	}
	return e
}

// Extract builds a pose track for the media at path.
func (e *Extractor) Extract(ctx context.Context, path string, progress ProgressFunc) (*Track, error) {
	if e.estimator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pose", "extract", "pose estimator not configured", nil)
	}
	src, info, err := e.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return e.ExtractFrom(ctx, src, info, progress)
}

type sampledFrame struct {
	img   image.Image
	index int
}

// ExtractFrom samples every stride-th frame from src.
func (e *Extractor) ExtractFrom(ctx context.Context, src FrameSource, info VideoInfo, progress ProgressFunc) (*Track, error) {
	sourceFPS := info.SourceFPS
	if sourceFPS <= 0 {
		sourceFPS = e.opts.DefaultSourceFPS
	}
	stride := Stride(sourceFPS, e.opts.AnalysisFPS)
	track := &Track{SourceFPS: sourceFPS, AnalysisFPS: e.opts.AnalysisFPS, Stride: stride}

	total := 0
	if info.FrameCount > 0 {
		total = (info.FrameCount + stride - 1) / stride
	}

	batch := make([]sampledFrame, 0, e.opts.Workers)
	flush := func() error {
		frames, err := e.inferBatch(ctx, batch, sourceFPS)
		if err != nil {
			return err
		}
		for _, f := range frames {
			if !f.HasPose() {
				track.EmptyFrames++
			}
			track.Frames = append(track.Frames, f)
		}
		batch = batch[:0]
		if progress != nil {
			progress(len(track.Frames), total)
		}
		return nil
	}

	for position := 0; ; position++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if position%stride != 0 {
			if err := src.Skip(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, services.Wrap(services.ErrExternalTool, "pose", "decode", "skip frame", err)
			}
			continue
		}
		img, idx, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, services.Wrap(services.ErrExternalTool, "pose", "decode", "read frame", err)
		}
		batch = append(batch, sampledFrame{img: img, index: idx})
		if len(batch) >= e.opts.Workers {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	e.logger.Info("pose extraction summary",
		logging.Int("frames_sampled", len(track.Frames)),
		logging.Int("empty_frames", track.EmptyFrames),
		logging.Float64("source_fps", sourceFPS),
		logging.Int("stride", stride),
	)
	return track, nil
}

// inferBatch runs the estimator over frames concurrently and returns results in input order.
func (e *Extractor) inferBatch(ctx context.Context, batch []sampledFrame, sourceFPS float64) ([]Frame, error) {
	out := make([]Frame, len(batch))
	var wg sync.WaitGroup
	for i, sf := range batch {
		wg.Add(1)
		go func(i int, sf sampledFrame) {
			defer wg.Done()
			out[i] = e.inferFrame(ctx, sf, sourceFPS)
		}(i, sf)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Extractor) inferFrame(ctx context.Context, sf sampledFrame, sourceFPS float64) Frame {
	ts := float64(sf.index) / sourceFPS
	landmarks, err := e.estimator.Infer(ctx, sf.img)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Debug("pose estimation failed for frame",
				logging.Int("frame_index", sf.index),
				logging.Error(services.Wrap(services.ErrPoseExtractionEmpty, "pose", "infer", fmt.Sprintf("frame %d", sf.index), err)),
			)
		}
		return NewFrame(sf.index, ts, nil)
	}
	return NewFrame(sf.index, ts, MapLandmarks(landmarks, e.opts.MinConfidence))
}

func (e *Extractor) openFFmpeg(ctx context.Context, path string) (FrameSource, VideoInfo, error) {
	probe, err := ffprobe.Inspect(ctx, e.opts.FFprobeBinary, path)
	if err != nil {
		return nil, VideoInfo{}, services.Wrap(services.ErrExternalTool, "pose", "probe", "ffprobe", err)
	}
	width, height := probe.Dimensions()
	info := VideoInfo{
		SourceFPS:   probe.FrameRate(),
		Width:       width,
		Height:      height,
		DurationSec: probe.DurationSeconds(),
	}
	if vs, ok := probe.VideoStream(); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(vs.NBFrames)); err == nil {
			info.FrameCount = n
		}
	}
	if info.FrameCount <= 0 && info.DurationSec > 0 {
		fps := info.SourceFPS
		if fps <= 0 {
			fps = e.opts.DefaultSourceFPS
		}
		info.FrameCount = int(info.DurationSec * fps)
	}
	reader, err := ffmpeg.OpenFrames(ctx, e.opts.FFmpegBinary, path, width, height)
	if err != nil {
		return nil, VideoInfo{}, services.Wrap(services.ErrExternalTool, "pose", "decode", "open frames", err)
	}
	return reader, info, nil
}
