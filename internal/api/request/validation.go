// Package request decodes and validates inbound JSON bodies.
package request

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"Fedgate/internal/core/apperr"
)

// MaxBodyBytes bounds every decoded request body.
const MaxBodyBytes = 1 << 20

var validate = validator.New()

// Decode reads a JSON body into v and validates its struct tags. Failures
// are validation errors so handlers can pass them straight to
// handlers.HandleServiceError.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if err == io.EOF {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Validation("validation error: %v", err)
	}
	return nil
}

// DecodeObject reads a JSON object body without a target struct.
func DecodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var out map[string]any
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		if err == io.EOF {
			return nil, apperr.Validation("request body is required")
		}
		return nil, apperr.Validation("invalid JSON: %v", err)
	}
	if out == nil {
		return nil, apperr.Validation("request body must be a JSON object")
	}
	return out, nil
}

func RequireParam(name, value string) (string, error) {
	if value == "" {
		return "", apperr.Validation("missing required parameter %s", name)
	}
	return value, nil
}

