// Package auth completes provider logins: it turns an authorization code into
// a local user and a stored session.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Fedgate/internal/core/sessions"
	"Fedgate/internal/core/users"
	"Fedgate/internal/solid/oidc"
	"Fedgate/internal/solid/pds"
)

// Provider is the identity-provider client; *oidc.Registry implements it.
type Provider interface {
	ExchangeCode(ctx context.Context, code string) (*oidc.TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (*oidc.UserInfo, error)
}

// UserFinder is the part of users.UserService used on login.
type UserFinder interface {
	FindOrCreate(ctx context.Context, profile users.LoginProfile) (*users.User, error)
}

// SessionStarter is the part of sessions.Manager used on login.
type SessionStarter interface {
	Start(ctx context.Context, customerID, provider, webID string, tokens *oidc.TokenSet) (*sessions.Session, error)
}

// Login is a completed sign-in.
type Login struct {
	User      *users.User
	ExpiresAt time.Time
}

type Service struct {
	provider Provider
	users    UserFinder
	sessions SessionStarter
	log      *slog.Logger
}

func NewService(provider Provider, userFinder UserFinder, starter SessionStarter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		users:    userFinder,
		sessions: starter,
		log:      logger.With("component", "auth"),
	}
}

// CompleteLogin exchanges the code, checks the ID token nonce when one was
// sent, reads the user's profile and stores a session for them.
func (s *Service) CompleteLogin(ctx context.Context, code, expectedNonce string) (*Login, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	tokens, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if expectedNonce != "" && tokens.IDToken != "" {
		nonce, err := oidc.IDTokenNonce(tokens.IDToken)
		if err != nil || nonce != expectedNonce {
			s.log.Warn("id token nonce mismatch")
			return nil, ErrNonceMismatch
		}
	}

	info, err := s.provider.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if info.WebID == "" {
		return nil, ErrMissingWebID
	}

	user, err := s.users.FindOrCreate(ctx, users.LoginProfile{
		Email:   info.Email,
		Name:    info.Name,
		WebID:   info.WebID,
		Subject: info.Subject,
	})
	if err != nil {
		return nil, err
	}

	provider, err := pds.ProviderHost(info.WebID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingWebID, err)
	}

	session, err := s.sessions.Start(ctx, user.CustomerID, provider, info.WebID, tokens)
	if err != nil {
		return nil, err
	}

	s.log.Info("login completed",
		slog.String("customer_id", user.CustomerID),
		slog.String("provider", provider))
	return &Login{User: user, ExpiresAt: session.ExpiresAt}, nil
}
