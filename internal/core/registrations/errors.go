package registrations

import (
	"fmt"

	"Fedgate/internal/core/apperr"
)

var (
	// ErrRegistrationNotFound is returned when no registration matches the lookup
	ErrRegistrationNotFound = apperr.New(apperr.KindNotFound, "UnknownRegistration", "registration not found")

	// ErrInvalidPDSURL is returned when the PDS URL is not an absolute http(s) URL
	ErrInvalidPDSURL = apperr.New(apperr.KindValidation, "InvalidPdsUrl", "pdsUrl must be an absolute http(s) URL")

	// ErrNotConnectable is returned when a PDS registration is revoked or offers no authorization endpoint
	ErrNotConnectable = apperr.New(apperr.KindValidation, "PdsNotConnectable", "PDS registration cannot authorize customers")
)

// RegistrationFailedError wraps any failure while registering with a PDS.
type RegistrationFailedError struct {
	PDSURL string
	Err    error
}

func (e *RegistrationFailedError) Error() string {
	return fmt.Sprintf("PDS registration failed for %s: %v", e.PDSURL, e.Err)
}

func (e *RegistrationFailedError) Unwrap() error { return e.Err }

func (e *RegistrationFailedError) ErrorKind() apperr.Kind {
	if k := apperr.KindOf(e.Err); k == apperr.KindUpstream {
		return k
	}
	return apperr.KindInternal
}

func (e *RegistrationFailedError) ErrorCode() string { return "PdsRegistrationFailed" }
