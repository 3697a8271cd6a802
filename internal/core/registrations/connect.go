package registrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"Fedgate/internal/core/apperr"
	"Fedgate/internal/core/sessions"
	"Fedgate/internal/solid/oidc"
	"Fedgate/internal/solid/pds"
)

// ConnectScope is requested from the PDS authorization endpoint.
const ConnectScope = "openid profile offline_access"

// ConnectRequest is an authorization started at a customer's PDS. State must
// come back unchanged on the callback; Provider and WebID are kept alongside
// it until then.
type ConnectRequest struct {
	URL      string
	State    string
	Provider string
	WebID    string
}

// Connect builds the authorization URL that lets a customer grant this
// service access to the PDS hosting their WebID. The PDS must already hold a
// registration for this service.
func (s *Service) Connect(ctx context.Context, webID string) (*ConnectRequest, error) {
	webID = strings.TrimSpace(webID)
	if webID == "" {
		return nil, apperr.Validation("webId is required")
	}
	pdsURL, err := pds.CredentialStoreURL(webID)
	if err != nil {
		return nil, apperr.Validation("webId must be an absolute http(s) URL")
	}
	provider, err := pds.ProviderHost(pdsURL)
	if err != nil {
		return nil, ErrInvalidPDSURL
	}

	reg, err := s.connectable(ctx, provider)
	if err != nil {
		return nil, err
	}
	authURL, err := url.Parse(reg.Endpoints.Authorization)
	if err != nil || authURL.Host == "" {
		return nil, ErrNotConnectable
	}

	state, err := oidc.GenerateNonce()
	if err != nil {
		return nil, err
	}

	q := authURL.Query()
	q.Set("client_id", reg.ServiceDID)
	q.Set("redirect_uri", s.callbackURL())
	q.Set("response_type", "code")
	q.Set("scope", ConnectScope)
	q.Set("state", state)
	authURL.RawQuery = q.Encode()

	return &ConnectRequest{URL: authURL.String(), State: state, Provider: provider, WebID: webID}, nil
}

// CompleteConnect redeems the code the PDS sent back for the pending request
// and stores the resulting session for the customer. The session refreshes
// at the same token endpoint.
func (s *Service) CompleteConnect(ctx context.Context, customerID string, pending ConnectRequest, code string) (*sessions.Session, error) {
	if code == "" {
		return nil, apperr.Validation("authorization code is required")
	}
	if s.grants == nil || s.starts == nil {
		return nil, errors.New("pds connect flow is not configured")
	}

	reg, err := s.connectable(ctx, pending.Provider)
	if err != nil {
		return nil, err
	}
	tokenEndpoint := reg.Endpoints.Token
	if tokenEndpoint == "" {
		tokenEndpoint = strings.TrimRight(reg.PDSURL, "/") + "/token"
	}

	tokens, err := s.grants.ExchangeCode(ctx, tokenEndpoint, code)
	if err != nil {
		return nil, err
	}
	session, err := s.starts.StartWithEndpoint(ctx, customerID, pending.Provider, pending.WebID, tokenEndpoint, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to start pds session: %w", err)
	}

	s.log.Info("customer connected PDS",
		slog.String("customer_id", customerID),
		slog.String("provider", pending.Provider))
	return session, nil
}

func (s *Service) connectable(ctx context.Context, provider string) (*Registration, error) {
	reg, err := s.ForProvider(ctx, provider)
	if err != nil {
		return nil, err
	}
	if reg.Status == StatusRevoked || reg.Endpoints.Authorization == "" {
		return nil, ErrNotConnectable
	}
	return reg, nil
}

func (s *Service) callbackURL() string {
	return strings.TrimRight(s.id.ServiceURL, "/") + "/pds/callback"
}
