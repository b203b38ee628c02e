// Package config loads, normalizes, and validates dancebreak configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and DANCEBREAK_REDIS_URL. The scoring weight table is
// resolved during Load: the built-in table, optionally overlaid by the file
// named in scoring.weights_file, and validated so every weight set sums to one.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
