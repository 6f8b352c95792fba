// Package web holds the HTTP plumbing shared by all services: JSON
// responses, error mapping, middleware and the server lifecycle.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/docstore"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, map[string]string{"error": message})
}

type violationBody struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations"`
}

// WriteDomainError maps an error from the service layer to a response.
// Unknown errors are logged and answered with 500.
func WriteDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var violations *validation.Violations
	var dup *docstore.DuplicateKeyError

	switch {
	case errors.As(err, &violations):
		WriteJSON(w, logger, http.StatusBadRequest, violationBody{
			Error:      violations.Error(),
			Violations: violations.Messages,
		})
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, logger, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrUsernameExists),
		errors.Is(err, domain.ErrInvalidAccount):
		WriteError(w, logger, http.StatusBadRequest, err.Error())
	case errors.As(err, &dup):
		WriteError(w, logger, http.StatusBadRequest, "duplicate key")
	case errors.Is(err, domain.ErrPreconditionRequired):
		WriteError(w, logger, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		WriteError(w, logger, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, logger, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, logger, http.StatusForbidden, "forbidden")
	default:
		logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		WriteError(w, logger, http.StatusInternalServerError, "internal server error")
	}
}

// DecodeJSON decodes the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
