// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp breakdown IDs, source identities, stage names,
//     job IDs, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper. The markers form the
//     failure taxonomy that decides whether a run fails or degrades.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
