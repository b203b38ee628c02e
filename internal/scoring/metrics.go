package scoring

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"dancebreak/internal/config"
	"dancebreak/internal/pose"
)

// analysis holds the valid frames and the per-pair movement series shared by
// several metrics.
type analysis struct {
	frames    []pose.Frame
	movements []float64
	th        config.Thresholds
	sc        config.Scales
}

func newAnalysis(frames []pose.Frame, weights config.WeightTable) *analysis {
	a := &analysis{frames: frames, th: weights.Thresholds, sc: weights.Scales}
	a.movements = make([]float64, 0, len(frames))
	for i := 1; i < len(frames); i++ {
		a.movements = append(a.movements, frameMovement(frames[i-1], frames[i]))
	}
	return a
}

const neutral = 0.5

func (a *analysis) technique() map[string]float64 {
	return map[string]float64{
		"balance":     a.balance(),
		"alignment":   a.alignment(),
		"posture":     a.posture(),
		"precision":   a.precision(),
		"consistency": a.techniqueConsistency(),
	}
}

func (a *analysis) rhythm(bpm *float64) map[string]float64 {
	consistency := a.rhythmConsistency()
	return map[string]float64{
		"beat_sync":   a.beatSync(bpm),
		"timing":      a.timing(),
		"consistency": consistency,
		"tempo":       a.tempo(bpm),
		"musicality":  (consistency + a.flow()) / 2,
	}
}

func (a *analysis) expression() map[string]float64 {
	flow := a.flow()
	energy := a.energy()
	return map[string]float64{
		"flow":        flow,
		"energy":      energy,
		"style":       a.sc.StyleAuthenticity,
		"performance": (a.techniqueConsistency() + flow + energy) / 3,
		"artistic":    a.artistic(),
	}
}

func (a *analysis) difficulty(multiplier float64) map[string]float64 {
	complexity := a.complexity()
	demand := a.physicalDemand()
	skill := a.skill()
	coordination := complexity
	overall := math.Min(1, (complexity+demand+skill+coordination)/4*multiplier)
	return map[string]float64{
		"complexity":      complexity,
		"physical_demand": demand,
		"skill":           skill,
		"coordination":    coordination,
		"overall":         overall,
	}
}

func (a *analysis) fullPose(f pose.Frame) bool {
	return len(f.Keypoints) >= a.th.FullPoseKeypoints
}

// balance measures how still the hip centre stays.
func (a *analysis) balance() float64 {
	var xs, ys []float64
	for _, f := range a.frames {
		if !a.fullPose(f) {
			continue
		}
		var sx, sy float64
		n := 0
		for _, kp := range f.Keypoints {
			if strings.Contains(string(kp.Type), "hip") {
				sx += kp.X
				sy += kp.Y
				n++
			}
		}
		if n > 0 {
			xs = append(xs, sx/float64(n))
			ys = append(ys, sy/float64(n))
		}
	}
	if len(xs) < a.th.MinSeries {
		return a.sc.BalanceNeutral
	}
	_, vx := stat.PopMeanVariance(xs, nil)
	_, vy := stat.PopMeanVariance(ys, nil)
	return math.Max(0, 1-(vx+vy)*a.sc.Balance)
}

// alignment rewards level shoulders.
func (a *analysis) alignment() float64 {
	var scores []float64
	for _, f := range a.frames {
		if !a.fullPose(f) {
			continue
		}
		l, okL := f.Keypoint(pose.LeftShoulder)
		r, okR := f.Keypoint(pose.RightShoulder)
		if okL && okR {
			scores = append(scores, math.Max(0, 1-math.Abs(l.Y-r.Y)*a.sc.Alignment))
		}
	}
	return meanOr(scores, neutral)
}

// posture rewards a shoulder stacked over the hip.
func (a *analysis) posture() float64 {
	var scores []float64
	for _, f := range a.frames {
		if !a.fullPose(f) {
			continue
		}
		sh, okS := f.Keypoint(pose.LeftShoulder)
		hip, okH := f.Keypoint(pose.LeftHip)
		if okS && okH {
			scores = append(scores, math.Max(0, 1-math.Abs(sh.X-hip.X)*a.sc.Posture))
		}
	}
	return meanOr(scores, neutral)
}

func (a *analysis) precision() float64 {
	scores := make([]float64, len(a.movements))
	for i, m := range a.movements {
		scores[i] = math.Min(1, 1-m*a.sc.Precision)
	}
	return meanOr(scores, neutral)
}

func (a *analysis) techniqueConsistency() float64 {
	if len(a.movements) == 0 {
		return neutral
	}
	_, v := stat.PopMeanVariance(a.movements, nil)
	return math.Min(1, math.Max(0, 1-math.Sqrt(v)*a.sc.Consistency))
}

func (a *analysis) beatSync(bpm *float64) float64 {
	if bpm == nil || *bpm <= 0 || len(a.movements) < a.th.MinSeries {
		return a.sc.NoTempoNeutral
	}
	_, v := stat.PopMeanVariance(a.movements, nil)
	return math.Min(1, math.Max(0, 1-v*a.sc.BeatSync))
}

// timing scores the variance of movement across sliding three-frame windows.
func (a *analysis) timing() float64 {
	var scores []float64
	for i := 1; i < len(a.movements); i++ {
		_, v := stat.PopMeanVariance(a.movements[i-1:i+1], nil)
		scores = append(scores, math.Min(1, math.Max(0, 1-v*a.sc.Timing)))
	}
	return meanOr(scores, neutral)
}

func (a *analysis) rhythmConsistency() float64 {
	if len(a.movements) < a.th.MinSeries {
		return neutral
	}
	_, v := stat.PopMeanVariance(a.movements, nil)
	return math.Min(1, math.Max(0, 1-v*a.sc.Rhythm))
}

// tempo compares above-average movements per minute with the target BPM.
func (a *analysis) tempo(bpm *float64) float64 {
	if bpm == nil || *bpm <= 0 || len(a.movements) == 0 {
		return a.sc.NoTempoNeutral
	}
	elapsed := a.frames[len(a.frames)-1].Timestamp - a.frames[0].Timestamp
	if elapsed <= 0 {
		return a.sc.NoTempoNeutral
	}
	mean := stat.Mean(a.movements, nil)
	significant := 0
	for _, m := range a.movements {
		if m > mean {
			significant++
		}
	}
	actual := float64(significant) / elapsed * 60
	return math.Max(0, math.Min(1, 1-math.Abs(actual-*bpm)/(*bpm)))
}

// flow penalises acceleration between consecutive movements.
func (a *analysis) flow() float64 {
	var scores []float64
	for i := 1; i < len(a.movements); i++ {
		accel := math.Abs(a.movements[i] - a.movements[i-1])
		scores = append(scores, math.Min(1, math.Max(0, 1-accel*a.sc.Flow)))
	}
	return meanOr(scores, neutral)
}

func (a *analysis) energy() float64 {
	var scores []float64
	for _, f := range a.frames {
		if len(f.Keypoints) >= a.th.MinKeypoints {
			scores = append(scores, pose.MeanConfidence(f.Keypoints))
		}
	}
	return meanOr(scores, neutral)
}

func (a *analysis) artistic() float64 {
	scores := make([]float64, len(a.movements))
	for i, m := range a.movements {
		scores[i] = math.Min(1, m*a.sc.Artistic)
	}
	return meanOr(scores, neutral)
}

func (a *analysis) complexity() float64 {
	var scores []float64
	for i := 1; i < len(a.frames); i++ {
		scores = append(scores, frameComplexity(a.frames[i-1], a.frames[i], a.th.MovementEpsilon))
	}
	return meanOr(scores, neutral)
}

// physicalDemand rewards joints held high in the frame (y grows downward).
func (a *analysis) physicalDemand() float64 {
	return a.perKeypointMean(func(kp pose.Keypoint) float64 { return 1 - kp.Y })
}

// skill rewards extension away from the frame centre.
func (a *analysis) skill() float64 {
	return a.perKeypointMean(func(kp pose.Keypoint) float64 { return math.Abs(kp.X-0.5) + math.Abs(kp.Y-0.5) })
}

func (a *analysis) perKeypointMean(value func(pose.Keypoint) float64) float64 {
	var scores []float64
	for _, f := range a.frames {
		if len(f.Keypoints) < a.th.MinKeypoints {
			continue
		}
		sum, n := 0.0, 0
		for _, kp := range f.Keypoints {
			if kp.Confidence > a.th.KeypointConfidence {
				sum += value(kp)
				n++
			}
		}
		if n == 0 {
			scores = append(scores, neutral)
			continue
		}
		scores = append(scores, sum/float64(n))
	}
	return meanOr(scores, neutral)
}

// frameMovement is the mean displacement of the joints both frames share.
func frameMovement(a, b pose.Frame) float64 {
	if len(a.Keypoints) == 0 || len(b.Keypoints) == 0 {
		return 0
	}
	next := keypointMap(b)
	total, pairs := 0.0, 0
	for t, kp := range keypointMap(a) {
		other, ok := next[t]
		if !ok {
			continue
		}
		total += math.Hypot(other.X-kp.X, other.Y-kp.Y)
		pairs++
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

// frameComplexity is the fraction of shared joints that moved more than eps.
func frameComplexity(a, b pose.Frame, eps float64) float64 {
	next := keypointMap(b)
	moved, shared := 0, 0
	for t, kp := range keypointMap(a) {
		other, ok := next[t]
		if !ok {
			continue
		}
		shared++
		if math.Hypot(other.X-kp.X, other.Y-kp.Y) > eps {
			moved++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(moved) / float64(shared)
}

func keypointMap(f pose.Frame) map[pose.KeypointType]pose.Keypoint {
	m := make(map[pose.KeypointType]pose.Keypoint, len(f.Keypoints))
	for _, kp := range f.Keypoints {
		m[kp.Type] = kp
	}
	return m
}

func meanOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return stat.Mean(values, nil)
}
