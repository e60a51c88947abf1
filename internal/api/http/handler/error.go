package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dtroode/househelp-server/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a service error onto an HTTP status and a client message.
// Internal details are never returned for 500s.
func statusFor(err error) (int, string) {
	var validationErr *model.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "phone number already registered"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewValidationError("", "invalid request body")
	}
	return nil
}
