package credentials

import (
	"fmt"

	"Fedgate/internal/core/apperr"
)

// ErrInvalidCredential is returned when there is nothing to store.
var ErrInvalidCredential = apperr.New(apperr.KindValidation, "InvalidRequest", "credential is required")

// CredentialStoreFailedError is a failed call to the user's credential
// store. StatusCode and Body are set when the store answered.
type CredentialStoreFailedError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *CredentialStoreFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to %s: credential store returned %d: %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *CredentialStoreFailedError) Unwrap() error          { return e.Err }
func (e *CredentialStoreFailedError) ErrorKind() apperr.Kind { return apperr.KindUpstream }
func (e *CredentialStoreFailedError) ErrorCode() string      { return "CredentialStoreFailed" }
