package oidc

import (
	"errors"
	"fmt"

	"Fedgate/internal/core/apperr"
)

var (
	// ErrNotRegistered is returned when an operation needs a client registration and none is loaded
	ErrNotRegistered = apperr.New(apperr.KindInternal, "ClientNotRegistered", "OAuth client not registered")

	// ErrRegistrationFailed is returned when neither a stored, static nor dynamic registration could be obtained
	ErrRegistrationFailed = apperr.New(apperr.KindInternal, "RegistrationFailed", "failed to register OAuth client with identity provider")

	// ErrInvalidToken is returned when the provider rejects an access token (HTTP 401)
	ErrInvalidToken = apperr.New(apperr.KindAuth, "InvalidToken", "access token rejected by identity provider")

	// ErrNoRegistration is returned by a RegistrationStore that holds nothing yet
	ErrNoRegistration = errors.New("no client registration stored")
)

// TokenExchangeFailedError is returned when the token endpoint rejects an
// authorization-code or refresh-token grant, or cannot be reached.
type TokenExchangeFailedError struct {
	GrantType  string
	StatusCode int
	Body       string
	Cause      error
}

func (e *TokenExchangeFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange (%s) failed with status %d: %s", e.GrantType, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("token exchange (%s) failed: %v", e.GrantType, e.Cause)
}

func (e *TokenExchangeFailedError) Unwrap() error { return e.Cause }

// Rejected grants are an auth problem for the caller; unreachable providers are upstream failures.
func (e *TokenExchangeFailedError) ErrorKind() apperr.Kind {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return apperr.KindAuth
	}
	return apperr.KindUpstream
}

func (e *TokenExchangeFailedError) ErrorCode() string { return "TokenExchangeFailed" }

// transient reports whether the failure happened before any response arrived.
func (e *TokenExchangeFailedError) transient() bool {
	return e.StatusCode == 0 && e.Cause != nil
}

// IsTokenExchangeFailed checks whether err is a TokenExchangeFailedError.
func IsTokenExchangeFailed(err error) bool {
	var target *TokenExchangeFailedError
	return errors.As(err, &target)
}
