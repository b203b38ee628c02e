// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Result helpers expose what the ingestor and pose extractor need: stream
// counts for validation, container duration, video frame rate, and frame
// dimensions.
package ffprobe
