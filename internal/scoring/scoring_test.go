package scoring

import (
	"math"
	"strings"
	"testing"

	"dancebreak/internal/config"
	"dancebreak/internal/pose"
)

func fullPose(shift, conf float64) []pose.Keypoint {
	kps := make([]pose.Keypoint, 0, len(pose.Schema))
	for i, t := range pose.Schema {
		kps = append(kps, pose.Keypoint{Type: t, X: 0.4 + shift, Y: 0.1 + float64(i)*0.045, Confidence: conf})
	}
	return kps
}

func swayTrack(frames int, conf float64) *pose.Track {
	track := &pose.Track{SourceFPS: 30, AnalysisFPS: 15, Stride: 2}
	for i := 0; i < frames; i++ {
		shift := 0.02 * math.Sin(float64(i)/2)
		track.Frames = append(track.Frames, pose.NewFrame(i*2, float64(i*2)/30, fullPose(shift, conf)))
	}
	return track
}

func TestScoreWithinRangeAndTotalIsWeighted(t *testing.T) {
	engine := NewEngine(config.DefaultWeights(), nil)
	bpm := 120.0
	res := engine.Score(swayTrack(60, 0.9), Request{ChallengeType: "spin", ChallengeDifficulty: "intermediate", TargetBPM: &bpm})

	for _, dim := range config.Dimensions {
		if s := res.Score(dim); s < 0 || s > 100 {
			t.Fatalf("%s score %d out of range", dim, s)
		}
		for name, v := range res.SubMetrics[dim] {
			if v < 0 || v > 1 {
				t.Fatalf("%s.%s = %f out of range", dim, name, v)
			}
		}
	}
	w, _ := config.DefaultWeights().ChallengeWeightsFor("spin")
	want := float64(res.Technique)*w.Technique + float64(res.Rhythm)*w.Rhythm + float64(res.Expression)*w.Expression + float64(res.Difficulty)*w.Difficulty
	if math.Abs(float64(res.Total)-want) > 1 {
		t.Fatalf("total %d, weighted sum %f", res.Total, want)
	}
	if res.ChallengeType != "spin" || res.WeightsVersion != config.DefaultWeightsVersion {
		t.Fatalf("unexpected metadata %+v", res)
	}
	if res.FramesAnalyzed != 60 || res.TotalFrames != 60 {
		t.Fatalf("frames analysed %d/%d", res.FramesAnalyzed, res.TotalFrames)
	}
	if math.Abs(res.Confidence-0.95) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.95", res.Confidence)
	}
	if res.Insufficient {
		t.Fatal("did not expect insufficient data")
	}
}

func TestInsufficientDataYieldsNeutralScores(t *testing.T) {
	engine := NewEngine(config.DefaultWeights(), nil)
	res := engine.Score(swayTrack(5, 0.9), Request{ChallengeType: "freestyle"})
	if !res.Insufficient {
		t.Fatal("expected insufficient data flag")
	}
	for _, s := range []int{res.Technique, res.Rhythm, res.Expression, res.Difficulty, res.Total} {
		if s != 50 {
			t.Fatalf("expected neutral 50, got %+v", res)
		}
	}
	if res.Confidence >= 0.3 {
		t.Fatalf("confidence %f should be below 0.3", res.Confidence)
	}
	if !strings.Contains(res.Feedback.Overall, "Not enough") {
		t.Fatalf("unexpected feedback %q", res.Feedback.Overall)
	}
}

func TestLowConfidenceFramesAreExcluded(t *testing.T) {
	engine := NewEngine(config.DefaultWeights(), nil)
	res := engine.Score(swayTrack(40, 0.4), Request{})
	if !res.Insufficient || res.FramesAnalyzed != 0 {
		t.Fatalf("expected no valid frames, got %+v", res)
	}
}

func TestPartialPoseFramesCountAsValid(t *testing.T) {
	track := &pose.Track{SourceFPS: 30, AnalysisFPS: 15, Stride: 2}
	for i := 0; i < 30; i++ {
		upper := fullPose(0.01*float64(i%3), 0.9)[:9]
		track.Frames = append(track.Frames, pose.NewFrame(i*2, float64(i*2)/30, upper))
	}
	res := NewEngine(config.DefaultWeights(), nil).Score(track, Request{ChallengeType: "freestyle", ChallengeDifficulty: "beginner"})
	if res.Insufficient {
		t.Fatal("upper-body frames should not be treated as insufficient data")
	}
	if res.FramesAnalyzed != 30 {
		t.Fatalf("frames analysed = %d, want 30", res.FramesAnalyzed)
	}
	if math.Abs(res.Confidence-0.95) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.95", res.Confidence)
	}
}

func TestEmptyTrack(t *testing.T) {
	res := NewEngine(config.DefaultWeights(), nil).Score(nil, Request{})
	if res.Total != 50 || res.Confidence != 0 || res.TotalFrames != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUnknownChallengeFallsBackToDefault(t *testing.T) {
	res := NewEngine(config.DefaultWeights(), nil).Score(swayTrack(30, 0.9), Request{ChallengeType: "moonwalk"})
	if res.ChallengeType != "freestyle" {
		t.Fatalf("challenge type = %q", res.ChallengeType)
	}
}

func TestDifficultyMultiplierRaisesOverall(t *testing.T) {
	engine := NewEngine(config.DefaultWeights(), nil)
	track := swayTrack(40, 0.9)
	beginner := engine.Score(track, Request{ChallengeDifficulty: "beginner"})
	advanced := engine.Score(track, Request{ChallengeDifficulty: "advanced"})
	if advanced.SubMetrics[config.DimensionDifficulty]["overall"] <= beginner.SubMetrics[config.DimensionDifficulty]["overall"] {
		t.Fatalf("advanced overall %f should exceed beginner %f",
			advanced.SubMetrics[config.DimensionDifficulty]["overall"], beginner.SubMetrics[config.DimensionDifficulty]["overall"])
	}
	if advanced.Difficulty < beginner.Difficulty {
		t.Fatalf("advanced difficulty %d below beginner %d", advanced.Difficulty, beginner.Difficulty)
	}
}

func TestTempoNeutralWithoutBPM(t *testing.T) {
	res := NewEngine(config.DefaultWeights(), nil).Score(swayTrack(30, 0.9), Request{})
	rhythm := res.SubMetrics[config.DimensionRhythm]
	if rhythm["beat_sync"] != 0.5 || rhythm["tempo"] != 0.5 {
		t.Fatalf("expected neutral tempo metrics, got %v", rhythm)
	}
}

func TestStaticPoseIsStable(t *testing.T) {
	track := &pose.Track{SourceFPS: 30, AnalysisFPS: 15, Stride: 2}
	for i := 0; i < 20; i++ {
		track.Frames = append(track.Frames, pose.NewFrame(i*2, float64(i*2)/30, fullPose(0, 0.9)))
	}
	res := NewEngine(config.DefaultWeights(), nil).Score(track, Request{})
	tech := res.SubMetrics[config.DimensionTechnique]
	if tech["balance"] != 1 || tech["precision"] != 1 || tech["consistency"] != 1 {
		t.Fatalf("static pose technique metrics %v", tech)
	}
	if res.SubMetrics[config.DimensionDifficulty]["complexity"] != 0 {
		t.Fatalf("static pose should have no complexity, got %v", res.SubMetrics[config.DimensionDifficulty])
	}
}

func TestFrameMovement(t *testing.T) {
	a := pose.NewFrame(0, 0, []pose.Keypoint{{Type: pose.Nose, X: 0, Y: 0}, {Type: pose.LeftWrist, X: 0.5, Y: 0.5}})
	b := pose.NewFrame(1, 0.1, []pose.Keypoint{{Type: pose.Nose, X: 0.3, Y: 0.4}, {Type: pose.RightWrist, X: 0.1, Y: 0.1}})
	if got := frameMovement(a, b); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("frameMovement = %f, want 0.5", got)
	}
	if got := frameComplexity(a, b, 0.01); got != 1 {
		t.Fatalf("frameComplexity = %f, want 1", got)
	}
	if got := frameMovement(a, pose.Frame{}); got != 0 {
		t.Fatalf("expected zero movement against empty frame, got %f", got)
	}
}

func TestFeedbackBands(t *testing.T) {
	fb := BuildFeedback(Result{Technique: 85, Rhythm: 65, Expression: 10, Difficulty: 80, Total: 90})
	if fb.Dimensions[config.DimensionTechnique] != dimensionFocus[config.DimensionTechnique].strong {
		t.Fatalf("technique feedback %q", fb.Dimensions[config.DimensionTechnique])
	}
	if fb.Dimensions[config.DimensionRhythm] != dimensionFocus[config.DimensionRhythm].solid {
		t.Fatalf("rhythm feedback %q", fb.Dimensions[config.DimensionRhythm])
	}
	if fb.Dimensions[config.DimensionExpression] != dimensionFocus[config.DimensionExpression].focus {
		t.Fatalf("expression feedback %q", fb.Dimensions[config.DimensionExpression])
	}
	if !strings.HasPrefix(fb.Overall, "Outstanding") {
		t.Fatalf("overall feedback %q", fb.Overall)
	}
	if got := BuildFeedback(Result{Total: 30}).Overall; !strings.HasPrefix(got, "Early") {
		t.Fatalf("overall feedback %q", got)
	}
}
