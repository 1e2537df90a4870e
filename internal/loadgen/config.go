// Package loadgen drives a running proofkit server over HTTP: it composes
// artifacts, floods them with verification events from many actors and
// checks that the ledger totals add up afterwards.
package loadgen

import (
	"time"

	"github.com/okian/proofkit/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL        string        // Base URL of the service
	ItemIDs        []string      // Catalog items composed into every artifact
	Artifacts      int           // Number of artifacts to compose
	Actors         int           // Distinct actor labels per artifact
	EventsPerActor int           // Events each actor submits per artifact
	DuplicateEvery int           // Resubmit every Nth event id; 0 disables
	Workers        int           // Concurrent submitters
	Timeout        time.Duration // HTTP request timeout
	SettleTimeout  time.Duration // How long to wait for the ledger to catch up
	PollInterval   time.Duration // Delay between ledger polls
	MaxRetries     int           // Retries of a 429 before giving up on an event
}

// Event is one submission to POST /artifacts/{id}/events.
type Event struct {
	ArtifactID string       `json:"-"`
	EventID    string       `json:"event_id"`
	ActorLabel string       `json:"actor_label"`
	Action     model.Action `json:"action"`
}

// Stats holds run statistics.
type Stats struct {
	ArtifactsComposed int
	EventsGenerated   int
	EventsAccepted    int
	EventsDuplicate   int
	EventsRejected    int
	EventsFailed      int
	Retries           int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}

// expected is what the ledger should report for one artifact.
type expected struct {
	total  int
	actors map[string]struct{}
}

func (c *Config) withDefaults() {
	if c.Artifacts < 1 {
		c.Artifacts = 1
	}
	if c.Actors < 1 {
		c.Actors = 1
	}
	if c.EventsPerActor < 1 {
		c.EventsPerActor = 1
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 2 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}
