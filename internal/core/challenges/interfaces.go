package challenges

import (
	"context"
	"time"

	"Fedgate/internal/core/registrations"
)

// RegistrationStore is the part of the registration repository the responder needs.
type RegistrationStore interface {
	GetByRegistrationID(ctx context.Context, registrationID string) (*registrations.Registration, error)
	UpdateStatus(ctx context.Context, registrationID string, status registrations.Status, verifiedAt *time.Time) error
}

// StatusFetcher asks a PDS for the state of a registration.
type StatusFetcher interface {
	RegistrationStatus(ctx context.Context, pdsURL, registrationID string) (map[string]any, error)
}
