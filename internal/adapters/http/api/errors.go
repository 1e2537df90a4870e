package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/proofkit/internal/adapters/catalog"
	"github.com/okian/proofkit/internal/adapters/mq/queue"
	"github.com/okian/proofkit/internal/adapters/repository"
	"github.com/okian/proofkit/internal/domain/compose"
	"github.com/okian/proofkit/internal/domain/ledger"
	"github.com/okian/proofkit/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBodyTooLarge = errors.New("request body too large")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// invalidRequest turns validator output into a single bad request error.
func invalidRequest(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return badRequest("%s", strings.Join(msgs, "; "))
}

// writeDomainError maps error kinds to status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var inel *compose.IneligibleError
	switch {
	case errors.As(err, &inel):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    "ineligible",
			Message: err.Error(),
			Reasons: inel.Reasons,
		})
	case errors.Is(err, model.ErrInvalidItemData):
		writeError(w, http.StatusUnprocessableEntity, "invalid_item_data", err)
	case errors.Is(err, catalog.ErrUnknownItem):
		writeError(w, http.StatusNotFound, "unknown_item", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, ledger.ErrInvalidLimit),
		errors.Is(err, ledger.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", err)
	case errors.Is(err, ledger.ErrOutOfOrderEvent):
		writeError(w, http.StatusConflict, "out_of_order", err)
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
