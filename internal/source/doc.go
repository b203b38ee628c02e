// Package source turns caller-supplied video references into normalized
// sources with a stable identity.
//
// The identity is the cache key used by the breakdown store, the single-flight
// group, and the identity lock, so two spellings of the same video (a YouTube
// share link and its watch URL, for example) must collapse to one identity.
package source
