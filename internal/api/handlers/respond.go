package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	middleware "github.com/markdave123-py/dsa-galaxy/internal/api/middlewares"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Validation and
// upstream messages reach the client verbatim; anything unexpected is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUnauthenticated):
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, models.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, models.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, models.ErrConflict):
		middleware.WriteError(w, http.StatusConflict, "An account with this email already exists")
	case errors.Is(err, models.ErrExportDisabled):
		middleware.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, models.ErrUpstream):
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return models.Invalid("invalid request body")
	}
	return nil
}
