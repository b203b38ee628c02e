package testsupport

import (
	"math"

	"dancebreak/internal/pose"
)

// StandingPose returns a full 17-keypoint pose shifted horizontally by shift.
func StandingPose(shift, confidence float64) []pose.Keypoint {
	kps := make([]pose.Keypoint, 0, len(pose.Schema))
	for i, t := range pose.Schema {
		kps = append(kps, pose.Keypoint{Type: t, X: 0.4 + shift, Y: 0.1 + float64(i)*0.045, Confidence: confidence})
	}
	return kps
}

// SwayTrack builds a track sampled at 15 fps from a 30 fps source where the
// dancer sways gently from side to side.
func SwayTrack(frames int, confidence float64) *pose.Track {
	track := &pose.Track{SourceFPS: 30, AnalysisFPS: 15, Stride: 2}
	for i := 0; i < frames; i++ {
		shift := 0.05 * math.Sin(float64(i)/3)
		track.Frames = append(track.Frames, pose.NewFrame(i*2, float64(i*2)/30, StandingPose(shift, confidence)))
	}
	return track
}

// EmptyTrack builds a track of frames with no detected pose.
func EmptyTrack(frames int) *pose.Track {
	track := &pose.Track{SourceFPS: 30, AnalysisFPS: 15, Stride: 2, EmptyFrames: frames}
	for i := 0; i < frames; i++ {
		track.Frames = append(track.Frames, pose.NewFrame(i*2, float64(i*2)/30, nil))
	}
	return track
}
