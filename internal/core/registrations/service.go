package registrations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Fedgate/internal/solid/pds"
	"Fedgate/internal/vault"
)

const serviceDescription = "Financial Entitlement Platform Application"

// ServiceCapabilities are requested from every PDS.
var ServiceCapabilities = []string{"read:credentials", "verify:credentials"}

// Identity describes this service to PDS providers.
type Identity struct {
	DID        string
	Domain     string
	ServiceURL string
}

type ServiceArgs struct {
	Identity    Identity
	Repo        Repository
	PDS         PDSClient
	Keys        PublicKeySource
	TokenSealer vault.Sealer
	Logger      *slog.Logger

	// Grants and Sessions back the customer connect flow.
	Grants   CodeExchanger
	Sessions SessionStarter
}

// Service registers this service with PDS providers and tracks the result.
type Service struct {
	id     Identity
	repo   Repository
	pds    PDSClient
	keys   PublicKeySource
	sealer vault.Sealer
	grants CodeExchanger
	starts SessionStarter
	log    *slog.Logger
	now    func() time.Time
}

func NewService(args ServiceArgs) *Service {
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		id:     args.Identity,
		repo:   args.Repo,
		pds:    args.PDS,
		keys:   args.Keys,
		sealer: args.TokenSealer,
		grants: args.Grants,
		starts: args.Sessions,
		log:    logger.With("component", "pds-registrations"),
		now:    time.Now,
	}
}

// Register discovers the PDS, announces this service to its registration
// endpoint and persists the resulting registration as returned by the PDS
// (normally pending until the DID challenge succeeds).
func (s *Service) Register(ctx context.Context, pdsURL string) (*Registration, error) {
	pdsURL = strings.TrimRight(strings.TrimSpace(pdsURL), "/")
	provider, err := pds.ProviderHost(pdsURL)
	if err != nil || !(strings.HasPrefix(pdsURL, "https://") || strings.HasPrefix(pdsURL, "http://")) {
		return nil, ErrInvalidPDSURL
	}

	discovery, err := s.pds.Discover(ctx, pdsURL)
	if err != nil {
		return nil, &RegistrationFailedError{PDSURL: pdsURL, Err: err}
	}

	publicKey, err := s.keys.PublicJWKJSON()
	if err != nil {
		return nil, &RegistrationFailedError{PDSURL: pdsURL, Err: err}
	}

	serviceURL := strings.TrimRight(s.id.ServiceURL, "/")
	result, err := s.pds.Register(ctx, discovery.RegistrationEndpoint, pds.ServiceRegistration{
		ServiceDID:        s.id.DID,
		Domain:            s.id.Domain,
		Description:       serviceDescription,
		Capabilities:      ServiceCapabilities,
		RedirectURL:       s.callbackURL(),
		ChallengeEndpoint: serviceURL + "/pds/did-challenge",
		PublicKeyJwk:      publicKey,
	})
	if err != nil {
		return nil, &RegistrationFailedError{PDSURL: pdsURL, Err: err}
	}

	status := Status(result.Status)
	if !status.Valid() {
		status = StatusPending
	}

	now := s.now().UTC()
	reg := &Registration{
		RegistrationID: result.RegistrationID,
		ServiceDID:     s.id.DID,
		PDSProvider:    provider,
		PDSURL:         pdsURL,
		DiscoveryURL:   pdsURL + "/.well-known/solid",
		Status:         status,
		Endpoints: Endpoints{
			Authorization: discovery.AuthorizationEndpoint,
			Token:         discovery.TokenEndpoint,
			Credentials:   discovery.CredentialEndpoint,
		},
		Capabilities: discovery.Capabilities,
		PublicKeyJWK: publicKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if reg.Capabilities == nil {
		reg.Capabilities = []string{}
	}
	if status == StatusVerified {
		reg.VerifiedAt = &now
	}

	if reg.AccessToken, err = s.seal(result.AccessToken); err != nil {
		return nil, &RegistrationFailedError{PDSURL: pdsURL, Err: err}
	}
	if reg.RefreshToken, err = s.seal(result.RefreshToken); err != nil {
		return nil, &RegistrationFailedError{PDSURL: pdsURL, Err: err}
	}

	saved, err := s.repo.Create(ctx, reg)
	if err != nil {
		return nil, &RegistrationFailedError{PDSURL: pdsURL, Err: fmt.Errorf("failed to save registration: %w", err)}
	}

	s.log.Info("registered with PDS",
		slog.String("provider", provider),
		slog.String("registration_id", saved.RegistrationID),
		slog.String("status", string(saved.Status)))
	return saved, nil
}

// Get returns a registration by id.
func (s *Service) Get(ctx context.Context, registrationID string) (*Registration, error) {
	return s.repo.GetByRegistrationID(ctx, registrationID)
}

// ForProvider returns the registration for a PDS provider hostname.
func (s *Service) ForProvider(ctx context.Context, provider string) (*Registration, error) {
	return s.repo.GetByProvider(ctx, provider)
}

func (s *Service) seal(token string) (string, error) {
	if token == "" || s.sealer == nil {
		return "", nil
	}
	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return "", fmt.Errorf("failed to seal registration token: %w", err)
	}
	return sealed, nil
}
