package pose

import "strings"

// Landmark is one raw estimator output point. Name wins over Index when both
// are present. Index follows COCO-17 or, for 33-point outputs, MediaPipe.
type Landmark struct {
	Name       string  `json:"name,omitempty"`
	Index      *int    `json:"index,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// MediaPipeLandmarkCount is the size of the MediaPipe pose output.
const MediaPipeLandmarkCount = 33

var mediaPipeIndex = map[int]KeypointType{
	0:  Nose,
	2:  LeftEye,
	5:  RightEye,
	7:  LeftEar,
	8:  RightEar,
	11: LeftShoulder,
	12: RightShoulder,
	13: LeftElbow,
	14: RightElbow,
	15: LeftWrist,
	16: RightWrist,
	23: LeftHip,
	24: RightHip,
	25: LeftKnee,
	26: RightKnee,
	27: LeftAnkle,
	28: RightAnkle,
}

var nameAliases = map[string]KeypointType{
	"l_shoulder": LeftShoulder,
	"r_shoulder": RightShoulder,
	"l_hip":      LeftHip,
	"r_hip":      RightHip,
}

// MapLandmarks converts estimator landmarks onto the fixed schema. Points with
// confidence below minConfidence and points outside the schema are dropped.
// Duplicate joints keep the most confident detection.
func MapLandmarks(landmarks []Landmark, minConfidence float64) []Keypoint {
	if len(landmarks) == 0 {
		return nil
	}
	mediaPipe := len(landmarks) >= MediaPipeLandmarkCount
	best := make(map[KeypointType]Keypoint, len(Schema))
	for pos, lm := range landmarks {
		kpType, ok := resolveType(lm, pos, mediaPipe)
		if !ok || lm.Confidence < minConfidence {
			continue
		}
		kp := Keypoint{Type: kpType, X: lm.X, Y: lm.Y, Confidence: clamp01(lm.Confidence)}
		if prev, seen := best[kpType]; !seen || kp.Confidence > prev.Confidence {
			best[kpType] = kp
		}
	}
	out := make([]Keypoint, 0, len(best))
	for _, t := range Schema {
		if kp, ok := best[t]; ok {
			out = append(out, kp)
		}
	}
	return out
}

func resolveType(lm Landmark, pos int, mediaPipe bool) (KeypointType, bool) {
	if name := normalizeName(lm.Name); name != "" {
		if _, ok := schemaIndex[KeypointType(name)]; ok {
			return KeypointType(name), true
		}
		if alias, ok := nameAliases[name]; ok {
			return alias, true
		}
		return "", false
	}
	idx := pos
	if lm.Index != nil {
		idx = *lm.Index
	}
	if mediaPipe {
		t, ok := mediaPipeIndex[idx]
		return t, ok
	}
	if idx >= 0 && idx < len(Schema) {
		return Schema[idx], true
	}
	return "", false
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
