package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"Fedgate/internal/solid/oidc"
	"Fedgate/internal/vault"
)

// DefaultRefreshSkew refreshes tokens slightly before they expire.
const DefaultRefreshSkew = 30 * time.Second

type ManagerArgs struct {
	Repo      Repository
	Sealer    vault.Sealer
	Refresher Refresher
	Logger    *slog.Logger
	Skew      time.Duration

	// EndpointRefresher serves sessions started with a PDS token endpoint.
	EndpointRefresher EndpointRefresher
}

// Manager hands out active sessions, refreshing expired tokens on the way.
// Concurrent refreshes for the same customer share one token request.
type Manager struct {
	repo      Repository
	sealer    vault.Sealer
	refresher Refresher
	direct    EndpointRefresher
	log       *slog.Logger
	skew      time.Duration
	now       func() time.Time
	refreshes singleflight.Group
}

func NewManager(args ManagerArgs) *Manager {
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skew := args.Skew
	if skew <= 0 {
		skew = DefaultRefreshSkew
	}
	return &Manager{
		repo:      args.Repo,
		sealer:    args.Sealer,
		refresher: args.Refresher,
		direct:    args.EndpointRefresher,
		log:       logger.With("component", "sessions"),
		skew:      skew,
		now:       time.Now,
	}
}

// Start stores a new session for the customer from an identity provider
// token response.
func (m *Manager) Start(ctx context.Context, customerID, provider, webID string, tokens *oidc.TokenSet) (*Session, error) {
	return m.StartWithEndpoint(ctx, customerID, provider, webID, "", tokens)
}

// StartWithEndpoint stores a session whose tokens were issued by the token
// endpoint of a PDS the customer connected directly. Refreshes go back there.
func (m *Manager) StartWithEndpoint(ctx context.Context, customerID, provider, webID, tokenEndpoint string, tokens *oidc.TokenSet) (*Session, error) {
	if customerID == "" || webID == "" || tokens == nil || tokens.AccessToken == "" {
		return nil, errors.New("session requires customer id, webid and an access token")
	}

	now := m.now().UTC()
	s := &Session{
		CustomerID:   customerID,
		PDSProvider:  provider,
		WebID:        webID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt(now),
		CreatedAt:    now,
		UpdatedAt:    now,

		TokenEndpoint: tokenEndpoint,
	}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Active returns the customer's session with usable plaintext tokens.
// An expired session is refreshed; if that fails the session is deleted and
// ErrSessionExpired is returned, so later calls fail fast with
// ErrNoActiveSession instead of retrying dead credentials.
func (m *Manager) Active(ctx context.Context, customerID string) (*Session, error) {
	if customerID == "" {
		return nil, ErrNoActiveSession
	}

	s, err := m.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !s.Expired(m.now(), m.skew) {
		return s, nil
	}

	v, err, _ := m.refreshes.Do(customerID, func() (any, error) {
		return m.refresh(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	refreshed := *v.(*Session)
	return &refreshed, nil
}

// End deletes the customer's sessions.
func (m *Manager) End(ctx context.Context, customerID string) error {
	if err := m.repo.Delete(ctx, customerID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (m *Manager) refresh(ctx context.Context, s *Session) (*Session, error) {
	if s.RefreshToken == "" {
		m.invalidate(ctx, s.CustomerID, "no refresh token")
		return nil, ErrSessionExpired
	}

	tokens, err := m.refreshGrant(ctx, s)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("session refresh interrupted: %w", ctx.Err())
	}
	if err != nil {
		m.invalidate(ctx, s.CustomerID, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	now := m.now().UTC()
	next := *s
	next.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		next.RefreshToken = tokens.RefreshToken
	}
	next.ExpiresAt = tokens.ExpiresAt(now)
	next.UpdatedAt = now

	if err := m.save(ctx, &next); err != nil {
		return nil, err
	}
	m.log.Info("refreshed session", slog.String("customer_id", s.CustomerID))
	return &next, nil
}

func (m *Manager) refreshGrant(ctx context.Context, s *Session) (*oidc.TokenSet, error) {
	if s.TokenEndpoint == "" {
		return m.refresher.Refresh(ctx, s.RefreshToken)
	}
	if m.direct == nil {
		return nil, errors.New("no refresher configured for pds token endpoints")
	}
	return m.direct.RefreshAt(ctx, s.TokenEndpoint, s.RefreshToken)
}

func (m *Manager) invalidate(ctx context.Context, customerID, reason string) {
	m.log.Warn("session refresh failed; deleting session",
		slog.String("customer_id", customerID),
		slog.String("reason", reason))
	if err := m.repo.Delete(context.WithoutCancel(ctx), customerID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		m.log.Error("failed to delete session", slog.String("customer_id", customerID), slog.String("error", err.Error()))
	}
}

func (m *Manager) load(ctx context.Context, customerID string) (*Session, error) {
	stored, err := m.repo.FindActive(ctx, customerID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s := *stored
	if s.AccessToken, err = m.sealer.Open(stored.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to open session token: %w", err)
	}
	if stored.RefreshToken != "" {
		if s.RefreshToken, err = m.sealer.Open(stored.RefreshToken); err != nil {
			return nil, fmt.Errorf("failed to open session token: %w", err)
		}
	}
	return &s, nil
}

// save seals a copy of s and persists it; s keeps its plaintext tokens and
// picks up the stored id.
func (m *Manager) save(ctx context.Context, s *Session) error {
	sealed := *s
	var err error
	if sealed.AccessToken, err = m.sealer.Seal(s.AccessToken); err != nil {
		return fmt.Errorf("failed to seal session token: %w", err)
	}
	if sealed.RefreshToken, err = m.sealer.Seal(s.RefreshToken); err != nil {
		return fmt.Errorf("failed to seal session token: %w", err)
	}

	saved, err := m.repo.Save(ctx, &sealed)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.ID = saved.ID
	s.CreatedAt = saved.CreatedAt
	return nil
}
