// Package config loads, normalizes, and validates darkroom configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DARKROOM_REGISTRY. The Config type centralizes the registry location, the
// default data root for new batches, lock timing and logging settings.
//
// This is the application configuration. Per-batch state lives in
// internal/batchconfig.
package config
