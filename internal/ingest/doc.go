// Package ingest acquires a source video into a private work directory and
// gathers the facts later stages need: a validated media file, duration,
// tempo, and optionally a playable copy in object storage.
//
// Acquisition runs an ordered list of strategies and keeps the first file
// that passes validation. Only acquisition failure is fatal; audio, tempo,
// and upload problems are logged and leave the corresponding field empty.
package ingest
