package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"Fedgate/internal/core/apperr"
)

// ErrorResponse is the JSON body of every error answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// WriteError writes a standardized JSON error response
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorType, Message: message})
}

// HandleServiceError maps a core error to a response through its apperr
// kind and code. Internal errors are logged and answered with a generic
// message so nothing from the failure leaks to the caller.
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := apperr.CodeOf(err)

	switch kind {
	case apperr.KindInternal:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
		WriteError(w, http.StatusInternalServerError, code, "An internal error occurred")
	case apperr.KindUpstream:
		slog.Warn("upstream call failed", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
		WriteError(w, kind.HTTPStatus(), code, err.Error())
	default:
		WriteError(w, kind.HTTPStatus(), code, err.Error())
	}
}
