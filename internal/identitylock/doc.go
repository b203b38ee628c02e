// Package identitylock serialises work on one source identity across
// processes and hosts.
//
// The pipeline already collapses concurrent requests inside one process;
// the lock covers the remaining race where two dancebreak processes (or two
// hosts sharing a redis) miss the cache for the same identity at once.
// Backends: flock files under the state directory, redis SET NX with a
// compare-and-delete release, and a no-op locker.
package identitylock
