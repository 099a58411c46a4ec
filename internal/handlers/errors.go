package handlers

import (
	"errors"
	"net/http"

	"github.com/ateliermtl/studio-billing/internal/httpx"
	"github.com/ateliermtl/studio-billing/internal/services"
)

// writeServiceError maps the engine's error taxonomy onto HTTP statuses:
// validation → 400, state conflict → 409, not found → 404.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", ve.Violations)
		return
	}
	var se *services.StateConflictError
	if errors.As(err, &se) {
		httpx.JSONError(w, http.StatusConflict, "state_conflict", se.Reason)
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}
