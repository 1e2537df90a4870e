package loadgen

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/proofkit/internal/domain/model"
)

// generateEvents builds the submissions for every artifact. Actions rotate
// through model.Actions; every DuplicateEvery-th event is followed by a copy
// carrying the same id.
func generateEvents(cfg *Config, artifactIDs []string) []Event {
	perArtifact := cfg.Actors * cfg.EventsPerActor
	events := make([]Event, 0, len(artifactIDs)*perArtifact)

	n := 0
	for _, id := range artifactIDs {
		for a := 0; a < cfg.Actors; a++ {
			actor := fmt.Sprintf("actor-%04d", a)
			for e := 0; e < cfg.EventsPerActor; e++ {
				ev := Event{
					ArtifactID: id,
					EventID:    uuid.NewString(),
					ActorLabel: actor,
					Action:     model.Actions[(a+e)%len(model.Actions)],
				}
				events = append(events, ev)

				n++
				if cfg.DuplicateEvery > 0 && n%cfg.DuplicateEvery == 0 {
					events = append(events, ev)
				}
			}
		}
	}
	return events
}
