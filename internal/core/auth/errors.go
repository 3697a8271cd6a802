package auth

import "Fedgate/internal/core/apperr"

var (
	ErrMissingCode   = apperr.New(apperr.KindValidation, "InvalidRequest", "authorization code is required")
	ErrNonceMismatch = apperr.New(apperr.KindAuth, "InvalidNonce", "id token nonce does not match the login request")
	ErrMissingWebID  = apperr.New(apperr.KindAuth, "WebIDMissing", "identity provider did not return a WebID")
)
