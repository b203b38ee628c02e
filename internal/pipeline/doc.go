// Package pipeline orchestrates dancebreak runs and exposes the four
// operations the CLI surfaces: Breakdown, Score, Statistics, and
// ReconcileDuplicates.
//
// A breakdown run is idempotent per source identity. The cached canonical
// result is returned when one exists; otherwise concurrent callers in this
// process share one execution (single-flight) and the identity lock keeps
// other processes from starting a duplicate. After acquiring the lock the
// cache is checked again, then the stages run strictly in order:
// ingest, pose, segment, content, persist.
//
// Every run registers a job so callers can observe stage progress.
package pipeline
