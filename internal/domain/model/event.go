package model

import "time"

// Action is what a verifier did with a published artifact.
type Action string

// Verification actions.
const (
	ActionView     Action = "view"
	ActionDownload Action = "download"
	ActionVerify   Action = "verify"
)

// Actions lists every known action.
var Actions = []Action{ActionView, ActionDownload, ActionVerify}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionDownload, ActionVerify:
		return true
	}
	return false
}

// VerificationEvent is a single observed interaction with a published artifact.
type VerificationEvent struct {
	ID         string    `json:"id"`
	ArtifactID string    `json:"artifact_id"`
	Timestamp  time.Time `json:"ts"`
	ActorLabel string    `json:"actor_label"`
	Action     Action    `json:"action"`
}

// LedgerStats is derived from an artifact's event sequence.
type LedgerStats struct {
	ArtifactID      string         `json:"artifact_id"`
	Total           int            `json:"total_verifications"`
	UniqueVerifiers int            `json:"unique_verifiers"`
	ByAction        map[Action]int `json:"by_action"`
	LastEventAt     time.Time      `json:"last_event_at"`
}
