package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/golang-jwt/jwt/v5"

	"Fedgate/internal/core/apperr"
)

// DefaultRefreshBackoff is the pause before the single refresh retry.
const DefaultRefreshBackoff = 250 * time.Millisecond

// TokenSet is the token endpoint response.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ExpiresAt converts ExpiresIn to an absolute time. Tokens without expires_in
// fall back to the access token's own exp claim, then to one hour.
func (t *TokenSet) ExpiresAt(now time.Time) time.Time {
	if t.ExpiresIn > 0 {
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if exp, ok := tokenExpiry(t.AccessToken); ok {
		return exp
	}
	return now.Add(time.Hour)
}

// tokenExpiry reads exp from a JWT access token without verifying it. The
// token was just received from the provider over TLS; it is only inspected
// to schedule a refresh.
func tokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// IDTokenNonce extracts the nonce claim from an ID token without verifying
// the signature, so the login callback can match it against the nonce it sent.
func IDTokenNonce(idToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("failed to parse id token: %w", err)
	}
	nonce, _ := claims["nonce"].(string)
	return nonce, nil
}

// ExchangeCode trades an authorization code for tokens. Codes are single-use,
// so this is never retried.
func (r *Registry) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	reg := r.reg.Load()
	if reg == nil {
		return nil, ErrNotRegistered
	}
	if code == "" {
		return nil, apperr.Validation("authorization code is required")
	}

	params := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {reg.ClientID},
		"client_secret": {reg.ClientSecret},
		"redirect_uri":  {r.cfg.RedirectURI},
	}
	return r.tokenRequest(ctx, "authorization_code", params)
}

// Refresh trades a refresh token for a new token set. A transport failure is
// retried once after a short backoff; an answer from the provider is final.
func (r *Registry) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	reg := r.reg.Load()
	if reg == nil {
		return nil, ErrNotRegistered
	}
	if refreshToken == "" {
		return nil, apperr.Validation("refresh token is required")
	}

	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {reg.ClientID},
		"client_secret": {reg.ClientSecret},
	}

	backoff := r.refreshBackoff
	if backoff <= 0 {
		backoff = DefaultRefreshBackoff
	}

	tokens, err := retry.DoWithData(
		func() (*TokenSet, error) {
			return r.tokenRequest(ctx, "refresh_token", params)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var tf *TokenExchangeFailedError
			return errors.As(err, &tf) && tf.transient()
		}),
		retry.OnRetry(func(n uint, err error) {
			r.log.Warn("retrying refresh token grant", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if !IsTokenExchangeFailed(err) {
			err = &TokenExchangeFailedError{GrantType: "refresh_token", Cause: err}
		}
		return nil, err
	}
	return tokens, nil
}

func (r *Registry) tokenRequest(ctx context.Context, grantType string, params url.Values) (*TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint("/auth/token"), strings.NewReader(params.Encode()))
	if err != nil {
		return nil, &TokenExchangeFailedError{GrantType: grantType, Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.h.Do(req)
	if err != nil {
		return nil, &TokenExchangeFailedError{GrantType: grantType, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TokenExchangeFailedError{GrantType: grantType, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var tokens TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, &TokenExchangeFailedError{GrantType: grantType, StatusCode: resp.StatusCode, Cause: err}
	}
	if tokens.AccessToken == "" {
		return nil, &TokenExchangeFailedError{GrantType: grantType, StatusCode: resp.StatusCode, Body: "response has no access_token"}
	}
	return &tokens, nil
}

// UserInfo is the provider's userinfo document.
type UserInfo struct {
	Subject    string `json:"sub"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	WebID      string `json:"webid,omitempty"`
}

// UserInfo fetches the userinfo document for an access token.
func (r *Registry) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}

	var info UserInfo
	err := r.getJSON(ctx, "/auth/userinfo", nil, accessToken, &info)
	var upstream *apperr.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}
