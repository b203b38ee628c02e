// Package ffmpeg wraps the two ffmpeg invocations the pipeline needs: mono
// WAV extraction for tempo estimation and a raw rgb24 frame pipe for pose
// sampling.
package ffmpeg
