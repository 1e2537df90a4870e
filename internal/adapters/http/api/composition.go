package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/proofkit/internal/domain/model"
)

// itemRequest is an inline item. Risk impact and content hash are checked by
// the domain so malformed values surface as invalid_item_data.
type itemRequest struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name"`
	Kind        model.Kind   `json:"kind" validate:"required,oneof=document badge"`
	ContentHash string       `json:"content_hash" validate:"max=256"`
	RiskImpact  int          `json:"risk_impact"`
	Status      model.Status `json:"status" validate:"required,oneof=valid pending expired"`
}

type referenceRequest struct {
	SourceID     string             `json:"source_id" validate:"required"`
	TargetID     string             `json:"target_id" validate:"required"`
	Relationship model.Relationship `json:"relationship" validate:"required"`
}

// selectionRequest names items by id or carries them inline, never both.
// An empty selection is accepted here and reported by the eligibility rules.
type selectionRequest struct {
	ItemIDs    []string           `json:"item_ids" validate:"excluded_with=Items,dive,required"`
	Items      []itemRequest      `json:"items" validate:"dive"`
	References []referenceRequest `json:"references" validate:"dive"`
}

func (s selectionRequest) toSelection() model.Selection {
	sel := model.Selection{ItemIDs: s.ItemIDs}
	if len(s.Items) > 0 {
		sel.Items = make([]model.SelectableItem, len(s.Items))
		for i, it := range s.Items {
			sel.Items[i] = model.SelectableItem(it)
		}
	}
	if s.References != nil {
		sel.References = make([]model.Reference, len(s.References))
		for i, r := range s.References {
			sel.References[i] = model.Reference(r)
		}
	}
	return sel
}

// CompositionHandler serves eligibility checks, composition and validation.
type CompositionHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewCompositionHandler creates a composition handler.
func NewCompositionHandler(deps Dependencies, v *validator.Validate) *CompositionHandler {
	return &CompositionHandler{deps: deps, validate: v}
}

func (h *CompositionHandler) selection(w http.ResponseWriter, r *http.Request) (model.Selection, bool) {
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return model.Selection{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", invalidRequest(err))
		return model.Selection{}, false
	}
	return req.toSelection(), true
}

// HandleEligibility handles POST /eligibility.
func (h *CompositionHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(w, r)
	if !ok {
		return
	}
	res, err := h.deps.CheckEligibility(r.Context(), sel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCompose handles POST /compose.
func (h *CompositionHandler) HandleCompose(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(w, r)
	if !ok {
		return
	}
	art, err := h.deps.Compose(r.Context(), sel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/artifacts/"+art.ID)
	writeJSON(w, http.StatusCreated, art)
}

// HandleValidate handles POST /validate.
func (h *CompositionHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(w, r)
	if !ok {
		return
	}
	res, err := h.deps.Validate(r.Context(), sel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
