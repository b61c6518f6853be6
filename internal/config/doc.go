// Package config loads, normalizes, and validates photoferry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PHOTOFERRY_QUEUE_DIR. The Config type centralizes every knob the CLI and the
// pipeline need, allowing queue/images/state directories, concurrency limits,
// and Google Photos credentials to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a loaded reference time zone, and clear validation errors.
package config
