// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the verification event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ledger workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DataDir is the Badger directory for artifacts and the ledger journal.
	// Empty keeps everything in memory.
	DataDir string `koanf:"data_dir"`

	// CatalogPath points at the YAML item catalog. Empty starts with an empty catalog.
	CatalogPath string `koanf:"catalog_path"`

	// MaxListLimit caps ?limit on list endpoints.
	MaxListLimit int `koanf:"max_list_limit"`

	// ConfidenceThreshold is the minimum confidence for a valid cross-document result.
	ConfidenceThreshold int `koanf:"confidence_threshold"`

	// MinConflictOverlap is the shortest shared content hash run that corroborates a conflict.
	MinConflictOverlap int `koanf:"min_conflict_overlap"`

	// SeverityWeights maps issue severity to the confidence penalty per issue.
	SeverityWeights map[string]int `koanf:"severity_weights"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		EventQueueSize:      50_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          200_000,
		MaxListLimit:        100,
		ConfidenceThreshold: 70,
		MinConflictOverlap:  8,
		SeverityWeights: map[string]int{
			"low":      2,
			"medium":   5,
			"high":     15,
			"critical": 30,
		},
	}
}

// Validate checks value ranges. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.EventQueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.EventQueueSize)
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.DedupeSize < 1:
		return invalid("dedupe_size must be positive, got %d", c.DedupeSize)
	case c.MaxListLimit < 1:
		return invalid("max_list_limit must be positive, got %d", c.MaxListLimit)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100:
		return invalid("confidence_threshold must be in [0,100], got %d", c.ConfidenceThreshold)
	case c.MinConflictOverlap < 1:
		return invalid("min_conflict_overlap must be positive, got %d", c.MinConflictOverlap)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	prev := 0
	for _, sev := range []string{"low", "medium", "high", "critical"} {
		w, ok := c.SeverityWeights[sev]
		if !ok {
			return invalid("severity_weights missing %q", sev)
		}
		if w < prev {
			return invalid("severity_weights must not decrease with severity (%s=%d)", sev, w)
		}
		prev = w
	}
	return nil
}
