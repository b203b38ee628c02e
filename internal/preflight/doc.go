// Package preflight provides readiness checks for the filesystem paths and
// external services dancebreak depends on.
//
// The CLI "dancebreak status" command runs RunAll and CheckSystemDeps to
// display service health. Checks for optional services (redis lock backend,
// remote pose estimator, LLM) only run when the service is configured.
package preflight
