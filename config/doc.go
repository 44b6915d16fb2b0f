// Package config loads the monitor configuration from defaults, a YAML file,
// environment variables (with an optional .env file) and command-line flags,
// and validates the result. It covers the input and state files, the storage
// backend, probe tuning, alert transport settings and metrics export.
package config
