package oidc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"Fedgate/internal/core/apperr"
)

// DomainVerifier checks that the relying party controls the domain it registered with.
type DomainVerifier interface {
	Verify(ctx context.Context, domain, clientID string) (bool, error)
}

// HTTPDomainVerifier calls an external DNS-verification service:
// POST {baseURL}/verify {"domain", "client_id"} -> {"verified": bool}
type HTTPDomainVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDomainVerifier(baseURL string, client *http.Client) *HTTPDomainVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDomainVerifier{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (v *HTTPDomainVerifier) Verify(ctx context.Context, domain, clientID string) (bool, error) {
	body, err := json.Marshal(map[string]string{"domain": domain, "client_id": clientID})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, &apperr.UpstreamError{Service: "dns verifier", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, &apperr.UpstreamError{Service: "dns verifier", StatusCode: resp.StatusCode, Body: string(b)}
	}

	var result struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode dns verifier response: %w", err)
	}
	return result.Verified, nil
}
