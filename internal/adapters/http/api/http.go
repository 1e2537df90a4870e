// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/okian/proofkit/internal/domain/dedupe"
	"github.com/okian/proofkit/internal/domain/eligibility"
	"github.com/okian/proofkit/internal/domain/model"
)

const (
	defaultListLimit = 20
	maxBodyBytes     = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Submit queues an event for async recording and returns it with its
	// timestamp filled in. Events older than the artifact's newest accepted
	// event fail with ledger.ErrOutOfOrderEvent; a full queue fails with
	// queue.ErrFull.
	Submit(ctx context.Context, ev model.VerificationEvent) (model.VerificationEvent, error)

	CheckEligibility(ctx context.Context, sel model.Selection) (eligibility.Result, error)
	Compose(ctx context.Context, sel model.Selection) (model.ComposedArtifact, error)
	Validate(ctx context.Context, sel model.Selection) (model.ValidationResult, error)

	Artifact(ctx context.Context, id string) (model.ComposedArtifact, error)
	Artifacts(ctx context.Context, limit int) ([]model.ComposedArtifact, error)
	VerifyArtifact(ctx context.Context, id string) (model.ProofCheck, error)

	LedgerStats(ctx context.Context, artifactID string) (model.LedgerStats, error)
	RecentEvents(ctx context.Context, artifactID string, limit int) ([]model.VerificationEvent, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	compositionHandler *CompositionHandler
	artifactsHandler   *ArtifactsHandler
	eventsHandler      *EventsHandler
}

// NewServer creates a new API server with all handlers. maxListLimit caps
// every ?limit= parameter.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxListLimit int) *Server {
	if maxListLimit < 1 {
		maxListLimit = defaultListLimit
	}
	v := newValidator()
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		compositionHandler: NewCompositionHandler(deps, v),
		artifactsHandler:   NewArtifactsHandler(deps, maxListLimit),
		eventsHandler:      NewEventsHandler(deps, v, maxListLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /eligibility", MetricsMiddleware(s.compositionHandler.HandleEligibility, "eligibility"))
	mux.HandleFunc("POST /compose", MetricsMiddleware(s.compositionHandler.HandleCompose, "compose"))
	mux.HandleFunc("POST /validate", MetricsMiddleware(s.compositionHandler.HandleValidate, "validate"))

	mux.HandleFunc("GET /artifacts", MetricsMiddleware(s.artifactsHandler.HandleList, "artifacts"))
	mux.HandleFunc("GET /artifacts/{id}", MetricsMiddleware(s.artifactsHandler.HandleGet, "artifact"))
	mux.HandleFunc("GET /artifacts/{id}/verify", MetricsMiddleware(s.artifactsHandler.HandleVerify, "artifact_verify"))

	mux.HandleFunc("POST /artifacts/{id}/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "artifact_events_post"))
	mux.HandleFunc("GET /artifacts/{id}/events", MetricsMiddleware(s.eventsHandler.HandleListEvents, "artifact_events"))
	mux.HandleFunc("GET /artifacts/{id}/stats", MetricsMiddleware(s.eventsHandler.HandleStats, "artifact_stats"))
}

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// parseLimit reads ?limit=, defaulting to min(defaultListLimit, max).
func parseLimit(r *http.Request, maxLimit int) (int, string, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(defaultListLimit, maxLimit), "", nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, "bad_request", badRequest("limit must be a positive integer, got %q", raw)
	}
	if n > maxLimit {
		return 0, "limit_exceeded", badRequest("limit %d exceeds maximum %d", n, maxLimit)
	}
	return n, "", nil
}
