package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"family-ops/internal/clipper"
	"family-ops/internal/entitlement"
	"family-ops/internal/planner"
	"family-ops/internal/routine"
	"family-ops/internal/shopping"
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeDomainError maps err to a status. Internal failures keep their
// detail out of the message.
func writeDomainError(w http.ResponseWriter, err error) {
	status, message := mapDomainError(err)
	body := errorBody{Error: message}
	if status != http.StatusInternalServerError && message != err.Error() {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}

func mapDomainError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, routine.ErrNotFound):
		return http.StatusNotFound, "Routine not found"
	case errors.Is(err, shopping.ErrNotFound), errors.Is(err, planner.ErrNotFound), errors.Is(err, routine.ErrChildNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, routine.ErrBadRequest), errors.Is(err, planner.ErrInvalidMeal), errors.Is(err, shopping.ErrInvalidItem):
		return http.StatusBadRequest, "Bad request"
	case errors.Is(err, entitlement.ErrNotEntitled):
		return http.StatusPaymentRequired, "Pro subscription required"
	case errors.Is(err, entitlement.ErrNotMember), errors.Is(err, entitlement.ErrForbidden), errors.Is(err, routine.ErrUnauthorized):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, routine.ErrToggleInFlight):
		return http.StatusConflict, "Toggle already in flight"
	case errors.Is(err, clipper.ErrNoRecipe):
		return http.StatusUnprocessableEntity, "No recipe found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
