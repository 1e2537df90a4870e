package api

import (
	"net/http"
)

// ArtifactsHandler serves composed artifacts and proof re-derivation.
type ArtifactsHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewArtifactsHandler creates an artifacts handler.
func NewArtifactsHandler(deps Dependencies, maxLimit int) *ArtifactsHandler {
	return &ArtifactsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleList handles GET /artifacts?limit=N.
func (h *ArtifactsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	n, code, err := parseLimit(r, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, code, err)
		return
	}
	arts, err := h.deps.Artifacts(r.Context(), n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, arts)
}

// HandleGet handles GET /artifacts/{id}.
func (h *ArtifactsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	art, err := h.deps.Artifact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, art)
}

// HandleVerify handles GET /artifacts/{id}/verify. A mismatch is reported in
// the body, not as an error status.
func (h *ArtifactsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	check, err := h.deps.VerifyArtifact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
