// Package segment splits a pose track into movement segments.
//
// Segmentation runs in three passes. PELT change-point detection with an RBF
// kernel cost finds posture changes across frames with a detected pose. When
// the tempo is known, segments longer than a fixed number of beats are cut at
// beat-length intervals. If the result is still sparser than one segment per
// two seconds of video, a beat grid over the whole duration replaces it; with
// no tempo the grid uses a default tempo so output is always dense.
package segment
