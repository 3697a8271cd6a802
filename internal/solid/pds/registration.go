package pds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Discovery is the PDS's /.well-known/solid document.
type Discovery struct {
	RegistrationEndpoint  string   `json:"registration_endpoint"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	CredentialEndpoint    string   `json:"credential_endpoint"`
	Capabilities          []string `json:"capabilities"`
}

// ServiceRegistration is what this service announces to a PDS.
type ServiceRegistration struct {
	ServiceDID        string          `json:"serviceDid"`
	Domain            string          `json:"domain"`
	Description       string          `json:"description"`
	Capabilities      []string        `json:"capabilities"`
	RedirectURL       string          `json:"redirectUrl"`
	ChallengeEndpoint string          `json:"challengeEndpoint"`
	PublicKeyJwk      json.RawMessage `json:"publicKeyJwk,omitempty"`
}

// RegistrationResult is the PDS's answer to a service registration.
type RegistrationResult struct {
	RegistrationID string `json:"registrationId"`
	Status         string `json:"status"`
	AccessToken    string `json:"access_token,omitempty"`
	RefreshToken   string `json:"refresh_token,omitempty"`
}

// Discover fetches {pdsURL}/.well-known/solid. A PDS without a registration
// endpoint in its discovery document gets the conventional {pdsURL}/pds/register.
func (c *Client) Discover(ctx context.Context, pdsURL string) (*Discovery, error) {
	base, err := normalizeBase(pdsURL)
	if err != nil {
		return nil, err
	}

	var d Discovery
	if err := c.doJSON(ctx, "discover pds", http.MethodGet, base+"/.well-known/solid", Target{}, nil, &d); err != nil {
		return nil, err
	}
	if d.RegistrationEndpoint == "" {
		d.RegistrationEndpoint = base + "/pds/register"
	}
	return &d, nil
}

// Register posts the service registration to endpoint.
func (c *Client) Register(ctx context.Context, endpoint string, reg ServiceRegistration) (*RegistrationResult, error) {
	var out RegistrationResult
	if err := c.doJSON(ctx, "register with pds", http.MethodPost, endpoint, Target{}, reg, &out); err != nil {
		return nil, err
	}
	if out.RegistrationID == "" {
		return nil, errors.New("register with pds: response has no registrationId")
	}
	return &out, nil
}

// RegistrationStatus fetches {pdsURL}/pds/register/{id}/status and returns the raw payload.
func (c *Client) RegistrationStatus(ctx context.Context, pdsURL, registrationID string) (map[string]any, error) {
	base, err := normalizeBase(pdsURL)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	endpoint := base + "/pds/register/" + url.PathEscape(registrationID) + "/status"
	if err := c.doJSON(ctx, "check registration status", http.MethodGet, endpoint, Target{}, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// ProviderHost is the hostname used to key registrations by PDS provider.
func ProviderHost(pdsURL string) (string, error) {
	u, err := url.Parse(pdsURL)
	if err != nil || u.Hostname() == "" {
		return "", ErrInvalidURL
	}
	return u.Hostname(), nil
}

func normalizeBase(pdsURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(pdsURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}
	return u.String(), nil
}
