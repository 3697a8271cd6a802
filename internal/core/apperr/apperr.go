// Package apperr is the error taxonomy shared by the core services.
//
// Services return either an *Error or a package-specific typed error that
// implements Classified. Handlers call KindOf/CodeOf to pick an HTTP status
// and a stable machine-readable code; the core never writes HTTP itself.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the coarse class of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// HTTPStatus is the status code a handler should answer with for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Classified is implemented by every error that knows its own kind and code.
type Classified interface {
	error
	ErrorKind() Kind
	ErrorCode() string
}

// Error is the generic classified error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New creates a classified error. Package-level sentinels are built with New
// so that errors.Is keeps working after wrapping.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a kind and code to an underlying error.
func Wrap(kind Kind, code string, err error) *Error {
	msg := code
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != e.Err.Error() {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) ErrorKind() Kind   { return e.Kind }
func (e *Error) ErrorCode() string { return e.Code }

// UpstreamError reports a failed call to the identity provider, a PDS or a
// credential store. It carries the upstream status and body when there was a
// response at all (StatusCode is 0 for transport failures).
type UpstreamError struct {
	Code       string
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("%s request failed", e.Service)
	}
}

func (e *UpstreamError) Unwrap() error   { return e.Err }
func (e *UpstreamError) ErrorKind() Kind { return KindUpstream }

func (e *UpstreamError) ErrorCode() string {
	if e.Code == "" {
		return "UpstreamError"
	}
	return e.Code
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var c Classified
	if errors.As(err, &c) {
		return c.ErrorKind()
	}
	return KindInternal
}

// CodeOf returns the machine-readable code for err.
func CodeOf(err error) string {
	var c Classified
	if errors.As(err, &c) && c.ErrorCode() != "" {
		return c.ErrorCode()
	}
	return "InternalError"
}

// Validation builds a validation error with the InvalidRequest code.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, "InvalidRequest", fmt.Sprintf(format, args...))
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsAuth(err error) bool       { return KindOf(err) == KindAuth }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsUpstream(err error) bool   { return KindOf(err) == KindUpstream }
