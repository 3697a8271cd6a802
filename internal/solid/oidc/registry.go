package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	ProviderURL string
	RedirectURI string
	Domain      string
	ClientName  string
	Scope       string
	ClientType  ClientType

	// StaticClientID and StaticClientSecret adopt a pre-issued client instead of registering.
	StaticClientID     string
	StaticClientSecret string

	// BypassDomainVerification treats an unreachable verifier as success (non-production only).
	BypassDomainVerification bool
}

type RegistryArgs struct {
	Config     Config
	Store      RegistrationStore
	Verifier   DomainVerifier
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Registry owns the client registration lifecycle with the identity provider
// and performs every client-authenticated call against it.
//
// The current registration is held in an atomic pointer. Writers are
// serialized by mu, persist first and swap the pointer last, so readers
// always see either the old or the new document.
type Registry struct {
	cfg      Config
	store    RegistrationStore
	verifier DomainVerifier
	h        *http.Client
	log      *slog.Logger

	reg         atomic.Pointer[ClientRegistration]
	registering atomic.Bool
	mu          sync.Mutex

	refreshBackoff time.Duration
	now            func() time.Time
}

func NewRegistry(args RegistryArgs) (*Registry, error) {
	if args.Config.ProviderURL == "" {
		return nil, fmt.Errorf("no provider url provided")
	}
	if args.Config.RedirectURI == "" {
		return nil, fmt.Errorf("no redirect uri provided")
	}
	if args.Store == nil {
		return nil, fmt.Errorf("no registration store provided")
	}
	if args.HTTPClient == nil {
		args.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if args.Logger == nil {
		args.Logger = slog.Default()
	}

	cfg := args.Config
	cfg.ProviderURL = strings.TrimRight(cfg.ProviderURL, "/")
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.ClientType == "" {
		cfg.ClientType = ClientTypePrivate
	}

	return &Registry{
		cfg:      cfg,
		store:    args.Store,
		verifier: args.Verifier,
		h:        args.HTTPClient,
		log:      args.Logger.With("component", "oidc-registry"),
		now:      time.Now,
	}, nil
}

// Current returns the loaded registration, or nil before LoadOrRegister succeeds.
func (r *Registry) Current() *ClientRegistration {
	return r.reg.Load()
}

func (r *Registry) ClientType() ClientType {
	return r.cfg.ClientType
}

func (r *Registry) State() State {
	reg := r.reg.Load()
	switch {
	case reg != nil && reg.Verified():
		return StateVerified
	case reg != nil:
		return StateUnverified
	case r.registering.Load():
		return StateRegistering
	default:
		return StateUnregistered
	}
}

func (r *Registry) Status() Status {
	reg := r.reg.Load()
	st := Status{State: r.State()}
	if reg != nil {
		pub := reg.Public()
		st.Registered = true
		st.Verified = reg.Verified()
		st.ClientRegistration = &pub
	}
	return st
}

// LoadOrRegister returns the active registration, in order of preference:
// the one already in memory, the persisted one, one built from static
// credentials, or a fresh dynamic registration with the provider.
func (r *Registry) LoadOrRegister(ctx context.Context) (*ClientRegistration, error) {
	if reg := r.reg.Load(); reg != nil {
		return reg, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if reg := r.reg.Load(); reg != nil {
		return reg, nil
	}

	stored, err := r.store.Load(ctx)
	switch {
	case err == nil:
		r.log.Info("loaded existing client registration", "client_id", stored.ClientID)
		r.reg.Store(stored)
		return stored, nil
	case !errors.Is(err, ErrNoRegistration):
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	r.registering.Store(true)
	defer r.registering.Store(false)

	var reg *ClientRegistration
	if r.cfg.StaticClientID != "" && r.cfg.StaticClientSecret != "" {
		reg = &ClientRegistration{
			ClientID:     r.cfg.StaticClientID,
			ClientSecret: r.cfg.StaticClientSecret,
			RedirectURIs: []string{r.cfg.RedirectURI},
			ClientName:   r.cfg.ClientName,
			Scope:        r.cfg.Scope,
			Domain:       r.cfg.Domain,
			ClientType:   r.cfg.ClientType,
			PreTrusted:   true,
		}
		r.log.Info("adopting static client credentials", "client_id", reg.ClientID)
	} else {
		reg, err = r.register(ctx)
		if err != nil {
			r.log.Error("client registration failed", "error", err)
			return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
		}
		r.log.Info("registered new client with identity provider", "client_id", reg.ClientID)
	}

	if err := r.store.Save(ctx, reg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	r.reg.Store(reg)
	return reg, nil
}

type registerRequest struct {
	ClientName        string     `json:"client_name"`
	RedirectURIs      []string   `json:"redirect_uris"`
	GrantTypes        []string   `json:"grant_types"`
	ResponseTypes     []string   `json:"response_types"`
	Scope             string     `json:"scope"`
	Domain            string     `json:"domain"`
	ClientType        ClientType `json:"client_type"`
	VerificationToken string     `json:"verification_token"`
}

func (r *Registry) register(ctx context.Context) (*ClientRegistration, error) {
	token, err := r.GetDomainVerificationToken(ctx)
	if err != nil {
		return nil, err
	}

	req := registerRequest{
		ClientName:        r.cfg.ClientName,
		RedirectURIs:      []string{r.cfg.RedirectURI},
		GrantTypes:        []string{"authorization_code", "refresh_token"},
		ResponseTypes:     []string{"code"},
		Scope:             r.cfg.Scope,
		Domain:            r.cfg.Domain,
		ClientType:        r.cfg.ClientType,
		VerificationToken: token,
	}

	var resp ClientRegistration
	if err := r.postJSON(ctx, "/client/register", req, &resp); err != nil {
		return nil, err
	}
	if resp.ClientID == "" {
		return nil, errors.New("provider response has no client_id")
	}

	// The provider may echo only the issued credentials.
	if len(resp.RedirectURIs) == 0 {
		resp.RedirectURIs = req.RedirectURIs
	}
	if resp.ClientName == "" {
		resp.ClientName = req.ClientName
	}
	if resp.Scope == "" {
		resp.Scope = req.Scope
	}
	if resp.Domain == "" {
		resp.Domain = req.Domain
	}
	resp.ClientType = r.cfg.ClientType
	resp.PreTrusted = false
	resp.VerifiedAt = nil

	return &resp, nil
}

// GetDomainVerificationToken asks the provider for the token that proves this
// registration request comes from the configured domain.
func (r *Registry) GetDomainVerificationToken(ctx context.Context) (string, error) {
	var resp struct {
		VerificationToken string `json:"verification_token"`
	}
	if err := r.postJSON(ctx, "/client/verification-token", map[string]string{"domain": r.cfg.Domain}, &resp); err != nil {
		return "", fmt.Errorf("failed to get domain verification token: %w", err)
	}
	if resp.VerificationToken == "" {
		return "", errors.New("provider returned an empty verification token")
	}
	return resp.VerificationToken, nil
}

// VerifyDomain runs domain-ownership verification for government clients.
// It reports whether the registration may be treated as verified. Unverified
// is not an error: callers decide which flows need a verified identity.
func (r *Registry) VerifyDomain(ctx context.Context) (bool, error) {
	reg := r.reg.Load()
	if reg == nil {
		return false, ErrNotRegistered
	}
	// Only government clients prove domain ownership.
	if r.cfg.ClientType != ClientTypeGovernment || reg.Verified() {
		return true, nil
	}

	if r.verifier == nil {
		return r.verificationUnavailable(errors.New("no domain verifier configured")), nil
	}

	ok, err := r.verifier.Verify(ctx, reg.Domain, reg.ClientID)
	if err != nil {
		return r.verificationUnavailable(err), nil
	}
	if !ok {
		r.log.Warn("domain verification rejected", "domain", reg.Domain)
		return false, nil
	}

	if err := r.postJSON(ctx, "/client/"+url.PathEscape(reg.ClientID)+"/verify", map[string]string{"domain": reg.Domain}, nil); err != nil {
		return r.verificationUnavailable(err), nil
	}

	now := r.now().UTC()
	if err := r.update(ctx, func(c *ClientRegistration) { c.VerifiedAt = &now }); err != nil {
		return false, err
	}
	r.log.Info("domain verified", "domain", reg.Domain)
	return true, nil
}

func (r *Registry) verificationUnavailable(err error) bool {
	if r.cfg.BypassDomainVerification {
		r.log.Warn("domain verification unavailable, bypassing outside production", "error", err)
		return true
	}
	r.log.Error("domain verification unavailable", "error", err)
	return false
}

// update applies mutate to a copy of the current registration, persists it
// and only then publishes it.
func (r *Registry) update(ctx context.Context, mutate func(*ClientRegistration)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.reg.Load()
	if cur == nil {
		return ErrNotRegistered
	}

	next := cur.clone()
	mutate(next)
	if err := r.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to persist client registration: %w", err)
	}
	r.reg.Store(next)
	return nil
}

// AuthRequest is the result of AuthorizationURL. Nonce must be kept by the
// caller to check the ID token returned after the redirect.
type AuthRequest struct {
	URL   string
	State string
	Nonce string
}

// AuthorizationURL builds the provider's authorize URL. An empty scope uses the registered default.
func (r *Registry) AuthorizationURL(state, scope string) (*AuthRequest, error) {
	reg := r.reg.Load()
	if reg == nil {
		return nil, ErrNotRegistered
	}
	if scope == "" {
		scope = r.cfg.Scope
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"response_type": {"code"},
		"client_id":     {reg.ClientID},
		"redirect_uri":  {r.cfg.RedirectURI},
		"scope":         {scope},
		"state":         {state},
		"nonce":         {nonce},
	}

	return &AuthRequest{
		URL:   r.endpoint("/auth/authorize") + "?" + params.Encode(),
		State: state,
		Nonce: nonce,
	}, nil
}

// GenerateNonce returns 32 random bytes, base64url encoded. Also used for anti-CSRF state values.
func GenerateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
