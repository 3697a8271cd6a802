package registrations

import (
	"context"
	"encoding/json"
	"time"

	"Fedgate/internal/core/sessions"
	"Fedgate/internal/solid/oidc"
	"Fedgate/internal/solid/pds"
)

// Repository persists PDS registrations keyed by registration id.
type Repository interface {
	Create(ctx context.Context, reg *Registration) (*Registration, error)
	GetByRegistrationID(ctx context.Context, registrationID string) (*Registration, error)
	GetByProvider(ctx context.Context, provider string) (*Registration, error)

	// UpdateStatus sets the status and, when verifiedAt is non-nil, the
	// verification timestamp. Returns ErrRegistrationNotFound for unknown ids.
	UpdateStatus(ctx context.Context, registrationID string, status Status, verifiedAt *time.Time) error
}

// PDSClient is the subset of the PDS client used for registration.
type PDSClient interface {
	Discover(ctx context.Context, pdsURL string) (*pds.Discovery, error)
	Register(ctx context.Context, endpoint string, reg pds.ServiceRegistration) (*pds.RegistrationResult, error)
}

// PublicKeySource provides the service's public key as a JWK.
type PublicKeySource interface {
	PublicJWKJSON() (json.RawMessage, error)
}

// CodeExchanger redeems an authorization code at a PDS token endpoint;
// *pds.TokenGrants implements it.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, tokenEndpoint, code string) (*oidc.TokenSet, error)
}

// SessionStarter stores the session a PDS connection produces;
// *sessions.Manager implements it.
type SessionStarter interface {
	StartWithEndpoint(ctx context.Context, customerID, provider, webID, tokenEndpoint string, tokens *oidc.TokenSet) (*sessions.Session, error)
}
