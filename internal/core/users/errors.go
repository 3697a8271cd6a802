package users

import (
	"errors"
	"fmt"

	"Fedgate/internal/core/apperr"
)

// Sentinel errors for common user operations
var (
	// ErrUserNotFound is returned when a user lookup finds no matching record
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when creating a user whose email already exists
	ErrEmailTaken = errors.New("email already registered")
)

// InvalidProfileError is returned when the identity provider's profile is
// missing something a local account needs.
type InvalidProfileError struct {
	Field  string
	Reason string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid login profile: %s %s", e.Field, e.Reason)
}

func (e *InvalidProfileError) ErrorKind() apperr.Kind { return apperr.KindValidation }
func (e *InvalidProfileError) ErrorCode() string      { return "InvalidProfile" }

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
