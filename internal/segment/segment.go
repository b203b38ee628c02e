package segment

import (
	"fmt"
	"log/slog"
	"math"

	"dancebreak/internal/logging"
	"dancebreak/internal/pose"
	"dancebreak/internal/services"
)

// Segment is one contiguous movement span.
type Segment struct {
	StepNumber int     `json:"step_number"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	// StartIndex and EndIndex point into the pose track. They are -1 when the
	// track has no frames.
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Method records which pass produced the final segment list.
type Method string

const (
	MethodChangePoint Method = "changepoint"
	MethodTempoSplit  Method = "changepoint+tempo"
	MethodGrid        Method = "grid"
)

// Result is the output of a segmentation run.
type Result struct {
	Segments     []Segment
	Method       Method
	ChangePoints int
	MinSegments  int
	// GridBPM is the tempo used for grid generation, set when Method is MethodGrid.
	GridBPM float64
}

// Options tunes the engine.
type Options struct {
	Penalty              float64
	MinSize              int
	BeatsPerSplit        int
	DefaultGridBPM       float64
	SecondsPerMinSegment float64
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{Penalty: 5, MinSize: 2, BeatsPerSplit: 4, DefaultGridBPM: 120, SecondsPerMinSegment: 2}
}

// Engine splits a pose track into movement segments.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine returns an engine. Zero option fields take their defaults.
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	def := DefaultOptions()
	if opts.Penalty <= 0 {
		opts.Penalty = def.Penalty
	}
	if opts.MinSize <= 0 {
		opts.MinSize = def.MinSize
	}
	if opts.BeatsPerSplit <= 0 {
		opts.BeatsPerSplit = def.BeatsPerSplit
	}
	if opts.DefaultGridBPM <= 0 {
		opts.DefaultGridBPM = def.DefaultGridBPM
	}
	if opts.SecondsPerMinSegment <= 0 {
		opts.SecondsPerMinSegment = def.SecondsPerMinSegment
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{opts: opts, logger: logger}
}

// Segment runs change-point detection, tempo splitting, and the grid fallback.
// It never fails: when the track is too sparse the grid covers [0, duration).
func (e *Engine) Segment(track *pose.Track, bpm *float64, duration float64) Result {
	minSegments := MinSegments(duration, e.opts.SecondsPerMinSegment)
	result := Result{MinSegments: minSegments, Method: MethodChangePoint}

	segments, err := e.ChangePoints(track)
	if err != nil {
		logging.WarnWithContext(e.logger, "change-point segmentation skipped", "segmentation_insufficient_data",
			logging.Error(err),
			logging.String(logging.FieldImpact, "falling back to beat grid"),
			logging.String(logging.FieldErrorHint, services.Details(err).Hint),
		)
	}
	result.ChangePoints = len(segments)

	if hasBPM(bpm) && len(segments) > 0 {
		segments = SplitByTempo(segments, *bpm, e.opts.BeatsPerSplit, track)
		result.Method = MethodTempoSplit
	}

	if len(segments) < minSegments && duration > 0 {
		gridBPM := e.opts.DefaultGridBPM
		if hasBPM(bpm) {
			gridBPM = *bpm
		}
		segments = Grid(duration, gridBPM, e.opts.BeatsPerSplit, track)
		result.Method = MethodGrid
		result.GridBPM = gridBPM
	}

	result.Segments = Renumber(segments)
	return result
}

// ChangePoints runs PELT over the valid frames of track.
func (e *Engine) ChangePoints(track *pose.Track) ([]Segment, error) {
	valid := track.ValidIndices()
	if len(valid) < 2 {
		return nil, services.Wrap(services.ErrSegmentationInsufficientData, "segment", "changepoint",
			fmt.Sprintf("%d frames with a detected pose", len(valid)), nil)
	}
	signal := make([][]float64, len(valid))
	for i, idx := range valid {
		signal[i] = track.Frames[idx].Vector()
	}
	bkps := pelt(signal, e.opts.Penalty, e.opts.MinSize)

	segments := make([]Segment, 0, len(bkps))
	prev := 0
	for _, bkp := range bkps {
		startIdx := valid[prev]
		endIdx := valid[len(valid)-1]
		if bkp-1 < len(valid) {
			endIdx = valid[bkp-1]
		}
		segments = append(segments, Segment{
			StartIndex: startIdx,
			EndIndex:   endIdx,
			StartTime:  track.Frames[startIdx].Timestamp,
			EndTime:    track.Frames[endIdx].Timestamp,
		})
		prev = bkp
	}
	return segments, nil
}

// SplitByTempo cuts segments longer than beats × 60/bpm into consecutive
// pieces of that length. Frame indices are the nearest track frames.
func SplitByTempo(segments []Segment, bpm float64, beats int, track *pose.Track) []Segment {
	if bpm <= 0 || beats <= 0 {
		return segments
	}
	maxLen := float64(beats) * 60 / bpm
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Duration() <= maxLen {
			out = append(out, seg)
			continue
		}
		for t := seg.StartTime; t < seg.EndTime; {
			next := math.Min(t+maxLen, seg.EndTime)
			if seg.EndTime-next < 1e-9 {
				next = seg.EndTime
			}
			out = append(out, Segment{
				StartTime:  t,
				EndTime:    next,
				StartIndex: nearest(track, t),
				EndIndex:   nearest(track, next),
			})
			t = next
		}
	}
	return out
}

// Grid covers [0, duration) with steps of beats × 60/bpm; the last step is
// clipped to duration.
func Grid(duration, bpm float64, beats int, track *pose.Track) []Segment {
	if duration <= 0 || bpm <= 0 || beats <= 0 {
		return nil
	}
	step := float64(beats) * 60 / bpm
	count := int(math.Ceil(duration/step - 1e-9))
	out := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * step
		end := math.Min(float64(i+1)*step, duration)
		if end-start <= 1e-9 {
			break
		}
		out = append(out, Segment{
			StartTime:  start,
			EndTime:    end,
			StartIndex: nearest(track, start),
			EndIndex:   nearest(track, end),
		})
	}
	return out
}

// MinSegments returns max(2, floor(duration / secondsPerSegment)).
func MinSegments(duration, secondsPerSegment float64) int {
	if secondsPerSegment <= 0 {
		secondsPerSegment = 2
	}
	n := int(math.Floor(duration / secondsPerSegment))
	if n < 2 {
		return 2
	}
	return n
}

// Renumber drops zero-length and inverted segments and assigns step numbers 1..n.
func Renumber(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.EndTime <= seg.StartTime {
			continue
		}
		seg.StepNumber = len(out) + 1
		out = append(out, seg)
	}
	return out
}

func nearest(track *pose.Track, ts float64) int {
	if track.Len() == 0 {
		return -1
	}
	return track.NearestIndex(ts)
}

func hasBPM(bpm *float64) bool {
	return bpm != nil && *bpm > 0
}
