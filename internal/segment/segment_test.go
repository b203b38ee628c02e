package segment

import (
	"errors"
	"math"
	"testing"

	"dancebreak/internal/pose"
	"dancebreak/internal/services"
)

func poseAt(shift float64) []pose.Keypoint {
	kps := make([]pose.Keypoint, 0, len(pose.Schema))
	for i, t := range pose.Schema {
		kps = append(kps, pose.Keypoint{Type: t, X: 0.3 + shift, Y: float64(i) / 20, Confidence: 0.9})
	}
	return kps
}

// buildTrack makes a 15 fps track; shiftAt returns the horizontal offset for frame i.
func buildTrack(frames int, shiftAt func(i int) float64) *pose.Track {
	track := &pose.Track{SourceFPS: 30, AnalysisFPS: 15, Stride: 2}
	for i := 0; i < frames; i++ {
		track.Frames = append(track.Frames, pose.NewFrame(i*2, float64(i*2)/30, poseAt(shiftAt(i))))
	}
	return track
}

func TestPELTFindsPostureChange(t *testing.T) {
	signal := make([][]float64, 40)
	for i := range signal {
		shift := 0.0
		if i >= 20 {
			shift = 0.4
		}
		signal[i] = pose.NewFrame(i, float64(i), poseAt(shift)).Vector()
	}
	bkps := pelt(signal, 5, 2)
	if len(bkps) != 2 || bkps[0] != 20 || bkps[1] != 40 {
		t.Fatalf("unexpected breakpoints %v", bkps)
	}
}

func TestPELTHigherPenaltyNeverAddsSegments(t *testing.T) {
	signal := make([][]float64, 60)
	for i := range signal {
		signal[i] = pose.NewFrame(i, float64(i), poseAt(float64(i/15)*0.2)).Vector()
	}
	low := pelt(signal, 1, 2)
	high := pelt(signal, 50, 2)
	if len(high) > len(low) {
		t.Fatalf("penalty 50 produced %d segments, penalty 1 produced %d", len(high), len(low))
	}
	if low[len(low)-1] != 60 || high[len(high)-1] != 60 {
		t.Fatal("breakpoints must end at the signal length")
	}
}

func TestChangePointsMapToTrackIndices(t *testing.T) {
	track := buildTrack(40, func(i int) float64 {
		if i >= 20 {
			return 0.4
		}
		return 0
	})
	// Frame 5 has no pose and must be skipped by the signal.
	track.Frames[5] = pose.NewFrame(track.Frames[5].Index, track.Frames[5].Timestamp, nil)

	segs, err := NewEngine(Options{}, nil).ChangePoints(track)
	if err != nil {
		t.Fatalf("ChangePoints: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segs)
	}
	if segs[0].StartIndex != 0 || segs[0].EndIndex != 19 || segs[1].StartIndex != 20 || segs[1].EndIndex != 39 {
		t.Fatalf("unexpected indices %+v", segs)
	}
	for _, s := range segs {
		if s.StartTime >= s.EndTime {
			t.Fatalf("segment must have start < end: %+v", s)
		}
	}
}

func TestChangePointsInsufficientData(t *testing.T) {
	track := &pose.Track{Frames: []pose.Frame{pose.NewFrame(0, 0, poseAt(0)), pose.NewFrame(1, 0.1, nil)}}
	_, err := NewEngine(Options{}, nil).ChangePoints(track)
	if !errors.Is(err, services.ErrSegmentationInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}

func TestSplitByTempoBoundsSegmentLength(t *testing.T) {
	track := buildTrack(150, func(int) float64 { return 0 })
	segs := SplitByTempo([]Segment{{StartTime: 0, EndTime: 5}, {StartTime: 5, EndTime: 6}}, 120, 4, track)
	if len(segs) != 4 {
		t.Fatalf("expected 4 segments, got %+v", segs)
	}
	for _, s := range segs {
		if s.Duration() > 2+1e-9 {
			t.Fatalf("segment exceeds 4 beats at 120 bpm: %+v", s)
		}
	}
	if segs[2].StartTime != 4 || segs[2].EndTime != 5 {
		t.Fatalf("unexpected tail segment %+v", segs[2])
	}
	if segs[1].StartIndex != track.NearestIndex(2) {
		t.Fatalf("unexpected start index %d", segs[1].StartIndex)
	}
}

func TestGridCoversDurationWithoutGaps(t *testing.T) {
	segs := Renumber(Grid(7, 120, 4, &pose.Track{}))
	if len(segs) != 4 {
		t.Fatalf("expected 4 grid segments, got %d", len(segs))
	}
	if segs[3].StartTime != 6 || segs[3].EndTime != 7 || segs[3].StepNumber != 4 {
		t.Fatalf("unexpected last segment %+v", segs[3])
	}
	if segs[0].StartIndex != -1 {
		t.Fatalf("expected -1 index for empty track, got %d", segs[0].StartIndex)
	}
}

func TestSegmentFallsBackToDefaultGrid(t *testing.T) {
	track := buildTrack(450, func(int) float64 { return 0 })
	res := NewEngine(Options{}, nil).Segment(track, nil, 30)
	if res.Method != MethodGrid || res.GridBPM != 120 || res.MinSegments != 15 {
		t.Fatalf("unexpected result metadata %+v", res)
	}
	if len(res.Segments) != 15 {
		t.Fatalf("expected 15 segments, got %d", len(res.Segments))
	}
	prevEnd := 0.0
	for i, s := range res.Segments {
		if s.StepNumber != i+1 {
			t.Fatalf("step numbers must be 1..n, got %d at %d", s.StepNumber, i)
		}
		if math.Abs(s.StartTime-prevEnd) > 1e-9 {
			t.Fatalf("gap or overlap before segment %d: %v vs %v", i, s.StartTime, prevEnd)
		}
		prevEnd = s.EndTime
	}
	if math.Abs(prevEnd-30) > 1e-9 {
		t.Fatalf("grid must end at duration, got %v", prevEnd)
	}
}

func TestSegmentWithoutPoseStillProducesGrid(t *testing.T) {
	bpm := 100.0
	res := NewEngine(Options{}, nil).Segment(&pose.Track{}, &bpm, 12)
	if res.Method != MethodGrid || res.GridBPM != 100 {
		t.Fatalf("unexpected result %+v", res)
	}
	// 4 beats at 100 bpm = 2.4 s; 12 s -> 5 steps
	if len(res.Segments) != 5 {
		t.Fatalf("expected 5 segments, got %d", len(res.Segments))
	}
}

func TestMinSegments(t *testing.T) {
	cases := map[float64]int{30: 15, 3: 2, 0: 2, 9.9: 4}
	for duration, want := range cases {
		if got := MinSegments(duration, 2); got != want {
			t.Fatalf("MinSegments(%v) = %d, want %d", duration, got, want)
		}
	}
}

func TestRenumberDropsInvalidSegments(t *testing.T) {
	segs := Renumber([]Segment{{StartTime: 0, EndTime: 1}, {StartTime: 2, EndTime: 2}, {StartTime: 3, EndTime: 2.5}, {StartTime: 3, EndTime: 4}})
	if len(segs) != 2 || segs[1].StepNumber != 2 || segs[1].StartTime != 3 {
		t.Fatalf("unexpected renumbered segments %+v", segs)
	}
}
