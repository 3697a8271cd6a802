package sessions

import (
	"context"

	"Fedgate/internal/solid/oidc"
)

// Repository persists sessions with sealed tokens.
type Repository interface {
	// FindActive returns the most recently updated session for the customer,
	// or ErrSessionNotFound.
	FindActive(ctx context.Context, customerID string) (*Session, error)

	// Save inserts or replaces the session for (CustomerID, PDSProvider) in a
	// single write, so a refreshed token supersedes the old one atomically.
	Save(ctx context.Context, s *Session) (*Session, error)

	// Delete removes every session of the customer.
	Delete(ctx context.Context, customerID string) error
}

// Refresher trades a refresh token for new tokens; *oidc.Registry implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oidc.TokenSet, error)
}

// EndpointRefresher runs the refresh grant against a specific PDS token
// endpoint; *pds.Client implements it.
type EndpointRefresher interface {
	RefreshAt(ctx context.Context, tokenEndpoint, refreshToken string) (*oidc.TokenSet, error)
}
