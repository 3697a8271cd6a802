package sessions

import (
	"errors"

	"Fedgate/internal/core/apperr"
)

var (
	// ErrSessionNotFound is returned by repositories when a customer has no session
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoActiveSession is returned when a customer has no usable session
	ErrNoActiveSession = apperr.New(apperr.KindAuth, "NoActiveSession", "no active PDS session found")

	// ErrSessionExpired is returned when an expired session could not be refreshed.
	// The stored session has been deleted by the time this is returned.
	ErrSessionExpired = apperr.New(apperr.KindAuth, "SessionExpired", "PDS session expired; sign in again")
)
