package pds

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"Fedgate/internal/core/apperr"
	"Fedgate/internal/solid/oidc"
)

// TokenGrants runs OAuth grants against the token endpoints of PDSs that
// registered this service. The service DID is the client id; PDS
// registrations carry no client secret.
type TokenGrants struct {
	c           *Client
	clientID    string
	redirectURI string
	backoff     time.Duration
}

// Grants returns a TokenGrants acting as clientID, with redirectURI sent on
// authorization-code exchanges.
func (c *Client) Grants(clientID, redirectURI string) *TokenGrants {
	return &TokenGrants{c: c, clientID: clientID, redirectURI: redirectURI, backoff: oidc.DefaultRefreshBackoff}
}

// ExchangeCode trades an authorization code from a PDS for tokens. Codes are
// single-use, so this is never retried.
func (g *TokenGrants) ExchangeCode(ctx context.Context, tokenEndpoint, code string) (*oidc.TokenSet, error) {
	if code == "" {
		return nil, apperr.Validation("authorization code is required")
	}
	params := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"client_id":    {g.clientID},
		"redirect_uri": {g.redirectURI},
	}
	return g.tokenRequest(ctx, tokenEndpoint, "authorization_code", params)
}

// RefreshAt trades a refresh token at tokenEndpoint. A transport failure is
// retried once; an answer from the PDS is final.
func (g *TokenGrants) RefreshAt(ctx context.Context, tokenEndpoint, refreshToken string) (*oidc.TokenSet, error) {
	if refreshToken == "" {
		return nil, apperr.Validation("refresh token is required")
	}
	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {g.clientID},
	}

	tokens, err := retry.DoWithData(
		func() (*oidc.TokenSet, error) {
			return g.tokenRequest(ctx, tokenEndpoint, "refresh_token", params)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(g.backoff),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var tf *oidc.TokenExchangeFailedError
			return errors.As(err, &tf) && tf.StatusCode == 0 && tf.Cause != nil
		}),
	)
	if err != nil {
		if !oidc.IsTokenExchangeFailed(err) {
			err = &oidc.TokenExchangeFailedError{GrantType: "refresh_token", Cause: err}
		}
		return nil, err
	}
	return tokens, nil
}

func (g *TokenGrants) tokenRequest(ctx context.Context, tokenEndpoint, grantType string, params url.Values) (*oidc.TokenSet, error) {
	if tokenEndpoint == "" {
		return nil, &oidc.TokenExchangeFailedError{GrantType: grantType, Cause: ErrInvalidURL}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, &oidc.TokenExchangeFailedError{GrantType: grantType, Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.c.h.Do(req)
	if err != nil {
		return nil, &oidc.TokenExchangeFailedError{GrantType: grantType, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &oidc.TokenExchangeFailedError{GrantType: grantType, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var tokens oidc.TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, &oidc.TokenExchangeFailedError{GrantType: grantType, StatusCode: resp.StatusCode, Cause: err}
	}
	if tokens.AccessToken == "" {
		return nil, &oidc.TokenExchangeFailedError{GrantType: grantType, StatusCode: resp.StatusCode, Body: "response has no access_token"}
	}
	return &tokens, nil
}
