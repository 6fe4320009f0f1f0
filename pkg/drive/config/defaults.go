// Package config provides configuration management for the drive client.
package config

import "time"

// Backends.
const (
	// BackendRemote talks to a Files API server over HTTP.
	BackendRemote = "remote"

	// BackendLocal keeps the whole drive in a local database.
	BackendLocal = "local"
)

// Default configuration values.
const (
	DefaultBackend         = BackendRemote
	DefaultBaseURL         = "http://localhost:3001"
	DefaultTimeout         = 30 * time.Second
	DefaultInlineThreshold = "5MiB"
	DefaultUploadWorkers   = 4
	DefaultOutputFormat    = "plain"
	DefaultLogLevel        = "info"
	DefaultLogMaxSize      = "10MB"
	DefaultLogMaxBackups   = 3
)
