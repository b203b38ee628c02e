package movement

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dancebreak/internal/pose"
)

// Thresholds used when labelling a summary.
const (
	DirectionThreshold   = 0.01
	BalancedSymmetry     = 0.1
	GoodCoordination     = 0.5
	TopJointCount        = 5
	NoPoseSummaryMessage = "No pose data for this segment."
)

var (
	symmetryPairs = [][2]pose.KeypointType{
		{pose.LeftShoulder, pose.RightShoulder},
		{pose.LeftElbow, pose.RightElbow},
		{pose.LeftWrist, pose.RightWrist},
		{pose.LeftHip, pose.RightHip},
		{pose.LeftKnee, pose.RightKnee},
		{pose.LeftAnkle, pose.RightAnkle},
	}
	upperBody = []pose.KeypointType{pose.LeftShoulder, pose.RightShoulder, pose.LeftElbow, pose.RightElbow}
	lowerBody = []pose.KeypointType{pose.LeftHip, pose.RightHip, pose.LeftKnee, pose.RightKnee}
)

// Summary describes how the body moved during one segment.
type Summary struct {
	Frames              int      `json:"frames"`
	TopJoints           []string `json:"top_joints,omitempty"`
	Direction           string   `json:"main_direction,omitempty"`
	Magnitude           float64  `json:"movement_magnitude"`
	Symmetry            float64  `json:"overall_symmetry"`
	Balance             string   `json:"balance,omitempty"`
	Coordination        float64  `json:"upper_lower_coordination"`
	CoordinationQuality string   `json:"coordination_quality,omitempty"`
	PeakCount           int      `json:"peak_count"`
	Transitions         int      `json:"transitions"`
	Energy              float64  `json:"energy"`
	Smoothness          float64  `json:"smoothness"`
	Stability           float64  `json:"stability"`
}

// Empty reports whether the segment had no pose data.
func (s Summary) Empty() bool {
	return s.Frames == 0
}

// Text renders the summary as prompt-ready prose.
func (s Summary) Text() string {
	if s.Empty() {
		return NoPoseSummaryMessage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d frames analysed. ", s.Frames)
	if len(s.TopJoints) > 0 {
		fmt.Fprintf(&b, "Most active joints: %s. ", strings.Join(s.TopJoints, ", "))
	}
	fmt.Fprintf(&b, "Main direction: %s. ", s.Direction)
	fmt.Fprintf(&b, "Movement magnitude %.3f with %d movement peaks and %d sharp transitions. ", s.Magnitude, s.PeakCount, s.Transitions)
	fmt.Fprintf(&b, "Left/right symmetry %.3f (%s). ", s.Symmetry, s.Balance)
	fmt.Fprintf(&b, "Upper/lower body coordination %.2f (%s). ", s.Coordination, s.CoordinationQuality)
	fmt.Fprintf(&b, "Energy %.4f, smoothness %.4f, stability %.4f.", s.Energy, s.Smoothness, s.Stability)
	return b.String()
}

// AnalyzeWindow summarises frames between two timestamps.
func AnalyzeWindow(track *pose.Track, startTime, endTime float64) Summary {
	if track.Len() == 0 {
		return Summary{}
	}
	return Analyze(track, track.NearestIndex(startTime), track.NearestIndex(endTime))
}

// Analyze summarises frames start..end inclusive. Frames without a pose are skipped.
func Analyze(track *pose.Track, start, end int) Summary {
	n := track.Len()
	if n == 0 {
		return Summary{}
	}
	start = clampInt(start, 0, n-1)
	end = clampInt(end, start, n-1)

	frames := make([]pose.Frame, 0, end-start+1)
	for _, f := range track.Frames[start : end+1] {
		if f.HasPose() {
			frames = append(frames, f)
		}
	}
	if len(frames) == 0 {
		return Summary{}
	}

	s := Summary{Frames: len(frames)}
	velocities := jointVelocities(frames)
	s.TopJoints = topJoints(velocities)
	s.Direction = mainDirection(frames)

	perFrame := make([]float64, len(frames)-1)
	for _, v := range velocities {
		for i, d := range v {
			perFrame[i] += d
		}
		s.Magnitude += floats.Sum(v)
	}
	s.PeakCount = countPeaks(perFrame)
	s.Transitions = countTransitions(perFrame)

	s.Symmetry = symmetry(velocities)
	s.Balance = "unbalanced"
	if s.Symmetry < BalancedSymmetry {
		s.Balance = "balanced"
	}
	s.Coordination = coordination(velocities)
	s.CoordinationQuality = "moderate"
	if s.Coordination > GoodCoordination {
		s.CoordinationQuality = "good"
	}
	s.Energy = energy(velocities)
	s.Smoothness = smoothness(velocities)
	s.Stability = stability(frames)
	return s
}

// jointVelocities returns per-joint displacement between consecutive frames.
// A joint missing from either frame contributes zero for that step.
func jointVelocities(frames []pose.Frame) map[pose.KeypointType][]float64 {
	out := make(map[pose.KeypointType][]float64, len(pose.Schema))
	if len(frames) < 2 {
		return out
	}
	for _, t := range pose.Schema {
		v := make([]float64, len(frames)-1)
		for i := 1; i < len(frames); i++ {
			a, okA := frames[i-1].Keypoint(t)
			b, okB := frames[i].Keypoint(t)
			if okA && okB {
				v[i-1] = math.Hypot(b.X-a.X, b.Y-a.Y)
			}
		}
		out[t] = v
	}
	return out
}

func topJoints(velocities map[pose.KeypointType][]float64) []string {
	type jointTotal struct {
		name  string
		order int
		total float64
	}
	totals := make([]jointTotal, 0, len(velocities))
	for i, t := range pose.Schema {
		v, ok := velocities[t]
		if !ok {
			continue
		}
		totals = append(totals, jointTotal{name: string(t), order: i, total: floats.Sum(v)})
	}
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].total == totals[j].total {
			return totals[i].order < totals[j].order
		}
		return totals[i].total > totals[j].total
	})
	out := make([]string, 0, TopJointCount)
	for _, jt := range totals {
		if len(out) == TopJointCount || jt.total <= 0 {
			break
		}
		out = append(out, jt.name)
	}
	return out
}

func mainDirection(frames []pose.Frame) string {
	if len(frames) < 2 {
		return "center"
	}
	var dx, dy float64
	count := 0
	for i := 1; i < len(frames); i++ {
		for _, b := range frames[i].Keypoints {
			if a, ok := frames[i-1].Keypoint(b.Type); ok {
				dx += b.X - a.X
				dy += b.Y - a.Y
				count++
			}
		}
	}
	if count == 0 {
		return "center"
	}
	dx /= float64(count)
	dy /= float64(count)
	switch {
	case dx < -DirectionThreshold:
		return "left"
	case dx > DirectionThreshold:
		return "right"
	case dy < -DirectionThreshold:
		return "up"
	case dy > DirectionThreshold:
		return "down"
	}
	return "center"
}

// countPeaks counts local maxima of total movement at or above the mean.
func countPeaks(series []float64) int {
	if len(series) < 3 {
		return 0
	}
	mean := stat.Mean(series, nil)
	peaks := 0
	for i := 1; i < len(series)-1; i++ {
		if series[i] >= mean && series[i] > series[i-1] && series[i] > series[i+1] {
			peaks++
		}
	}
	return peaks
}

// countTransitions counts steps whose movement exceeds mean + one standard deviation.
func countTransitions(series []float64) int {
	if len(series) == 0 {
		return 0
	}
	mean, variance := stat.PopMeanVariance(series, nil)
	threshold := mean + math.Sqrt(variance)
	count := 0
	for _, v := range series {
		if v > threshold {
			count++
		}
	}
	return count
}

func symmetry(velocities map[pose.KeypointType][]float64) float64 {
	scores := make([]float64, 0, len(symmetryPairs))
	for _, pair := range symmetryPairs {
		left, right := velocities[pair[0]], velocities[pair[1]]
		if len(left) == 0 || len(left) != len(right) {
			continue
		}
		diff := make([]float64, len(left))
		for i := range left {
			diff[i] = math.Abs(left[i] - right[i])
		}
		scores = append(scores, stat.Mean(diff, nil))
	}
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}

// coordination is the Pearson correlation of mean upper and lower body movement.
func coordination(velocities map[pose.KeypointType][]float64) float64 {
	upper := meanSeries(velocities, upperBody)
	lower := meanSeries(velocities, lowerBody)
	if len(upper) < 2 || len(upper) != len(lower) {
		return 0
	}
	if stat.Variance(upper, nil) == 0 || stat.Variance(lower, nil) == 0 {
		return 0
	}
	r := stat.Correlation(upper, lower, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func meanSeries(velocities map[pose.KeypointType][]float64, joints []pose.KeypointType) []float64 {
	var out []float64
	for _, j := range joints {
		v := velocities[j]
		if out == nil {
			out = make([]float64, len(v))
		}
		if len(v) != len(out) {
			continue
		}
		floats.Add(out, v)
	}
	if len(joints) > 0 {
		floats.Scale(1/float64(len(joints)), out)
	}
	return out
}

// energy is the mean squared joint speed.
func energy(velocities map[pose.KeypointType][]float64) float64 {
	per := make([]float64, 0, len(velocities))
	for _, t := range pose.Schema {
		v := velocities[t]
		if len(v) == 0 {
			continue
		}
		per = append(per, floats.Dot(v, v)/float64(len(v)))
	}
	if len(per) == 0 {
		return 0
	}
	return stat.Mean(per, nil)
}

// smoothness is the mean absolute jerk of joint speed; lower is smoother.
func smoothness(velocities map[pose.KeypointType][]float64) float64 {
	per := make([]float64, 0, len(velocities))
	for _, t := range pose.Schema {
		v := velocities[t]
		if len(v) < 3 {
			continue
		}
		sum := 0.0
		for i := 2; i < len(v); i++ {
			sum += math.Abs(v[i] - 2*v[i-1] + v[i-2])
		}
		per = append(per, sum/float64(len(v)-2))
	}
	if len(per) == 0 {
		return 0
	}
	return stat.Mean(per, nil)
}

// stability is the mean displacement of the keypoint centroid; lower is steadier.
func stability(frames []pose.Frame) float64 {
	if len(frames) < 2 {
		return 0
	}
	moves := make([]float64, 0, len(frames)-1)
	px, py := centroid(frames[0])
	for _, f := range frames[1:] {
		x, y := centroid(f)
		moves = append(moves, math.Hypot(x-px, y-py))
		px, py = x, y
	}
	return stat.Mean(moves, nil)
}

func centroid(f pose.Frame) (float64, float64) {
	var x, y float64
	for _, kp := range f.Keypoints {
		x += kp.X
		y += kp.Y
	}
	n := float64(len(f.Keypoints))
	return x / n, y / n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
