// Package pds talks to Personal Data Stores: the credential store living at
// a WebID's host and the PDS service-registration endpoints.
package pds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"Fedgate/internal/core/apperr"
)

// AudienceHeader carries the requested audience to the credential store.
const AudienceHeader = "X-WebID-Audience"

const maxErrorBody = 4096

// Target addresses one credential store as one user.
type Target struct {
	BaseURL     string
	AccessToken string
	// Audience is sent as X-WebID-Audience when non-empty.
	Audience string
}

// Client is safe for concurrent use.
type Client struct {
	h *http.Client
}

func NewClient(h *http.Client) *Client {
	if h == nil {
		h = http.DefaultClient
	}
	return &Client{h: h}
}

// CredentialStoreURL derives the credential store base URL from a WebID:
// the scheme and host of the WebID URL.
func CredentialStoreURL(webID string) (string, error) {
	u, err := url.Parse(webID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("%w: webid %q is not an http(s) URL", ErrInvalidURL, webID)
	}
	return u.Scheme + "://" + u.Host, nil
}

// StoreCredential POSTs a credential and returns the store's response body.
func (c *Client) StoreCredential(ctx context.Context, t Target, credential any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, "store credential", http.MethodPost, t.BaseURL+"/credentials", t, credential, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCredentials GETs the user's credentials, optionally filtered by type.
// Stores answer either with a bare array or with {"credentials": [...]}.
func (c *Client) ListCredentials(ctx context.Context, t Target, credType string) ([]map[string]any, error) {
	endpoint := t.BaseURL + "/credentials"
	if credType != "" {
		endpoint += "?" + url.Values{"type": {credType}}.Encode()
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, "list credentials", http.MethodGet, endpoint, t, nil, &raw); err != nil {
		return nil, err
	}
	return decodeCredentialList(raw)
}

func decodeCredentialList(raw json.RawMessage) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []map[string]any{}, nil
	}

	var list []map[string]any
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("invalid credential list: %w", err)
		}
	} else {
		var wrapped struct {
			Credentials []map[string]any `json:"credentials"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid credential list: %w", err)
		}
		list = wrapped.Credentials
	}
	if list == nil {
		list = []map[string]any{}
	}
	return list, nil
}

// GetCredential GETs a single credential by id.
func (c *Client) GetCredential(ctx context.Context, t Target, id string) (map[string]any, error) {
	var out map[string]any
	endpoint := t.BaseURL + "/credentials/" + url.PathEscape(id)
	if err := c.doJSON(ctx, "get credential", http.MethodGet, endpoint, t, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, t Target, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.AccessToken)
	}
	if t.Audience != "" {
		req.Header.Set(AudienceHeader, t.Audience)
	}

	resp, err := c.h.Do(req)
	if err != nil {
		return &apperr.UpstreamError{Service: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return &apperr.UpstreamError{Service: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid JSON response: %w", err)}
	}
	return nil
}
