package pose

import "math"

// KeypointType names a joint in the fixed 17-point body schema.
type KeypointType string

const (
	Nose          KeypointType = "nose"
	LeftEye       KeypointType = "left_eye"
	RightEye      KeypointType = "right_eye"
	LeftEar       KeypointType = "left_ear"
	RightEar      KeypointType = "right_ear"
	LeftShoulder  KeypointType = "left_shoulder"
	RightShoulder KeypointType = "right_shoulder"
	LeftElbow     KeypointType = "left_elbow"
	RightElbow    KeypointType = "right_elbow"
	LeftWrist     KeypointType = "left_wrist"
	RightWrist    KeypointType = "right_wrist"
	LeftHip       KeypointType = "left_hip"
	RightHip      KeypointType = "right_hip"
	LeftKnee      KeypointType = "left_knee"
	RightKnee     KeypointType = "right_knee"
	LeftAnkle     KeypointType = "left_ankle"
	RightAnkle    KeypointType = "right_ankle"
)

// Schema is the fixed keypoint order. It matches the COCO-17 index layout.
var Schema = []KeypointType{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist,
	LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

var schemaIndex = func() map[KeypointType]int {
	idx := make(map[KeypointType]int, len(Schema))
	for i, kp := range Schema {
		idx[kp] = i
	}
	return idx
}()

// SchemaIndex returns the position of t in Schema.
func SchemaIndex(t KeypointType) (int, bool) {
	i, ok := schemaIndex[t]
	return i, ok
}

// Keypoint is one detected joint in normalized image coordinates.
type Keypoint struct {
	Type       KeypointType `json:"type"`
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Confidence float64      `json:"confidence"`
}

// Frame is the pose detected on one sampled video frame. A frame with no
// keypoints means no pose was detected and has zero confidence.
type Frame struct {
	Index      int        `json:"frame_index"`
	Timestamp  float64    `json:"timestamp"`
	Keypoints  []Keypoint `json:"keypoints"`
	Confidence float64    `json:"frame_confidence"`
}

// NewFrame builds a frame and derives its confidence from the keypoints.
func NewFrame(index int, timestamp float64, keypoints []Keypoint) Frame {
	return Frame{Index: index, Timestamp: timestamp, Keypoints: keypoints, Confidence: MeanConfidence(keypoints)}
}

// HasPose reports whether any keypoint was detected.
func (f Frame) HasPose() bool {
	return len(f.Keypoints) > 0
}

// Keypoint returns the keypoint of the requested type.
func (f Frame) Keypoint(t KeypointType) (Keypoint, bool) {
	for _, kp := range f.Keypoints {
		if kp.Type == t {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Vector flattens the frame into (x, y) pairs in Schema order. Missing joints are zero.
func (f Frame) Vector() []float64 {
	vec := make([]float64, 2*len(Schema))
	for _, kp := range f.Keypoints {
		if i, ok := schemaIndex[kp.Type]; ok {
			vec[2*i] = kp.X
			vec[2*i+1] = kp.Y
		}
	}
	return vec
}

// MeanConfidence averages keypoint confidence. Empty input yields zero.
func MeanConfidence(keypoints []Keypoint) float64 {
	if len(keypoints) == 0 {
		return 0
	}
	sum := 0.0
	for _, kp := range keypoints {
		sum += kp.Confidence
	}
	return sum / float64(len(keypoints))
}

// Track is an ordered sequence of frames sampled at a fixed analysis rate.
type Track struct {
	Frames      []Frame `json:"frames"`
	SourceFPS   float64 `json:"source_fps"`
	AnalysisFPS float64 `json:"analysis_fps"`
	Stride      int     `json:"stride"`
	// EmptyFrames counts frames where the estimator failed or found nothing.
	EmptyFrames int `json:"empty_frames"`
}

// Len returns the number of sampled frames.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Frames)
}

// ValidIndices returns indices of frames with at least one keypoint.
func (t *Track) ValidIndices() []int {
	if t == nil {
		return nil
	}
	out := make([]int, 0, len(t.Frames))
	for i, f := range t.Frames {
		if f.HasPose() {
			out = append(out, i)
		}
	}
	return out
}

// Duration returns the timestamp of the last frame plus one sampling interval.
func (t *Track) Duration() float64 {
	if t == nil || len(t.Frames) == 0 {
		return 0
	}
	last := t.Frames[len(t.Frames)-1].Timestamp
	if t.SourceFPS > 0 && t.Stride > 0 {
		return last + float64(t.Stride)/t.SourceFPS
	}
	return last
}

// NearestIndex returns the index of the frame whose timestamp is closest to ts.
func (t *Track) NearestIndex(ts float64) int {
	if t == nil || len(t.Frames) == 0 {
		return 0
	}
	lo, hi := 0, len(t.Frames)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if t.Frames[mid].Timestamp < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo > 0 && math.Abs(t.Frames[lo-1].Timestamp-ts) <= math.Abs(t.Frames[lo].Timestamp-ts) {
		return lo - 1
	}
	return lo
}

// Stride returns the sampling stride for a source and analysis frame rate.
func Stride(sourceFPS, analysisFPS float64) int {
	if sourceFPS <= 0 || analysisFPS <= 0 {
		return 1
	}
	s := int(math.Round(sourceFPS / analysisFPS))
	if s < 1 {
		return 1
	}
	return s
}
