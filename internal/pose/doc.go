// Package pose turns a video into a pose track.
//
// The Extractor samples frames at a fixed analysis rate (stride =
// round(source_fps / analysis_fps)), asks an Estimator for landmarks on each
// sampled frame, and maps the landmarks onto the 17-point schema. Frames where
// the estimator fails or finds nobody are kept as empty frames so timestamps
// stay evenly spaced. HTTPEstimator is the remote estimator adapter.
package pose
