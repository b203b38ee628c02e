// Package objectstore defines the object storage contract used to fetch
// uploaded source videos and publish playable copies, plus a filesystem-backed
// implementation for single-host deployments.
package objectstore
