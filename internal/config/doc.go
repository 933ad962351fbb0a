// Package config loads notelock settings from an optional YAML file and
// NOTELOCK_* environment variables.
package config
