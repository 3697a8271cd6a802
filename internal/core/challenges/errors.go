package challenges

import (
	"fmt"

	"Fedgate/internal/core/apperr"
)

var (
	// ErrInvalidChallenge is returned when registrationId or challenge is missing
	ErrInvalidChallenge = apperr.New(apperr.KindValidation, "InvalidChallenge", "invalid challenge request: missing required fields")

	// ErrUnknownRegistration is returned when no registration matches registrationId
	ErrUnknownRegistration = apperr.New(apperr.KindNotFound, "UnknownRegistration", "no registration found for challenge")

	// ErrUnsupportedChallengeFormat is returned for challenges that are neither strings nor objects
	ErrUnsupportedChallengeFormat = apperr.New(apperr.KindValidation, "UnsupportedChallengeFormat", "unsupported challenge format")
)

// StatusCheckFailedError reports a failed verification-status call to a PDS.
// The local registration is left untouched when this is returned.
type StatusCheckFailedError struct {
	RegistrationID string
	Err            error
}

func (e *StatusCheckFailedError) Error() string {
	return fmt.Sprintf("verification status check failed for %s: %v", e.RegistrationID, e.Err)
}

func (e *StatusCheckFailedError) Unwrap() error          { return e.Err }
func (e *StatusCheckFailedError) ErrorKind() apperr.Kind { return apperr.KindUpstream }
func (e *StatusCheckFailedError) ErrorCode() string      { return "StatusCheckFailed" }
