package pds

import (
	"errors"
	"fmt"
	"net/http"

	"Fedgate/internal/core/apperr"
)

// Typed errors for PDS and credential-store calls.
// Callers use errors.Is() on an *APIError to branch on the status class.
var (
	// ErrBadRequest indicates the request was malformed or invalid (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates the request failed due to invalid or expired credentials (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the request was rejected due to insufficient permissions (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested resource does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the resource already exists (HTTP 409).
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates the upstream is throttling us (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidURL is returned when a WebID or PDS URL cannot be turned into an endpoint.
	ErrInvalidURL = errors.New("invalid url")
)

// APIError is a non-2xx answer from a PDS or credential store.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: upstream returned %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Is maps the status code onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return target == ErrBadRequest
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusForbidden:
		return target == ErrForbidden
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusConflict:
		return target == ErrConflict
	case http.StatusTooManyRequests:
		return target == ErrRateLimited
	}
	return false
}

func (e *APIError) ErrorKind() apperr.Kind { return apperr.KindUpstream }
func (e *APIError) ErrorCode() string      { return "UpstreamError" }

// IsAuthError returns true if the error is an authentication/authorization error.
// This is a convenience function for checking if re-authentication might help.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// StatusCode extracts the upstream status from err, or 0 when there was no response.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Body extracts the upstream body from err, if any.
func Body(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}
