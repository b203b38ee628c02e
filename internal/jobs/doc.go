// Package jobs tracks in-flight and recently finished pipeline runs.
//
// A Registry is an in-memory table of Job records keyed by uuid. The
// pipeline creates one job per run and updates it as stages progress;
// finished jobs are evicted after a TTL and any job is evicted once it
// exceeds the maximum age, so a crashed run cannot pin memory forever.
package jobs
