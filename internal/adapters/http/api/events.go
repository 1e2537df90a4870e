package api

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/okian/proofkit/internal/domain/dedupe"
	"github.com/okian/proofkit/internal/domain/model"
)

// eventRequest is the body of POST /artifacts/{id}/events.
type eventRequest struct {
	EventID    string       `json:"event_id" validate:"omitempty,max=128"`
	ActorLabel string       `json:"actor_label" validate:"required,max=256"`
	Action     model.Action `json:"action" validate:"required,oneof=view download verify"`
	TS         string       `json:"ts" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (e eventRequest) toEvent(artifactID string) model.VerificationEvent {
	ev := model.VerificationEvent{
		ID:         e.EventID,
		ArtifactID: artifactID,
		ActorLabel: e.ActorLabel,
		Action:     e.Action,
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if e.TS != "" {
		// Already checked by the validator.
		ts, _ := time.Parse(time.RFC3339, e.TS)
		ev.Timestamp = ts.UTC()
	}
	return ev
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"event_id"`
}

// EventsHandler ingests verification events and serves ledger reads.
type EventsHandler struct {
	deps     Dependencies
	validate *validator.Validate
	maxLimit int
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(deps Dependencies, v *validator.Validate, maxLimit int) *EventsHandler {
	return &EventsHandler{deps: deps, validate: v, maxLimit: maxLimit}
}

// HandlePostEvent handles POST /artifacts/{id}/events. Events are recorded
// asynchronously; 202 means queued, not yet in the ledger. Event ids are
// deduplicated per artifact.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	artifactID := r.PathValue("id")

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", invalidRequest(err))
		return
	}
	if _, err := h.deps.Artifact(ctx, artifactID); err != nil {
		writeDomainError(w, err)
		return
	}

	ev := req.toEvent(artifactID)
	key := dedupe.Key(artifactID, ev.ID)
	if h.deps.SeenAndRecord(ctx, key) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, EventID: ev.ID})
		return
	}
	if _, err := h.deps.Submit(ctx, ev); err != nil {
		// Forget the key so the client can retry.
		h.deps.Unrecord(ctx, key)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: ev.ID})
}

// HandleStats handles GET /artifacts/{id}/stats.
func (h *EventsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.LedgerStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleListEvents handles GET /artifacts/{id}/events?limit=N, newest first.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	n, code, err := parseLimit(r, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, err)
		return
	}
	events, err := h.deps.RecentEvents(r.Context(), r.PathValue("id"), n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
