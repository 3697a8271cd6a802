package oidc

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

const (
	serviceName  = "identity provider"
	maxErrorBody = 4096
)

func (r *Registry) endpoint(path string) string {
	return r.cfg.ProviderURL + path
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func (r *Registry) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return r.do(req, out)
}

func (r *Registry) getJSON(ctx context.Context, path string, query url.Values, bearer string, out any) error {
	u := r.endpoint(path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return r.do(req, out)
}

func (r *Registry) do(req *http.Request, out any) error {
	resp, err := r.h.Do(req)
	if err != nil {
		return &apperr.UpstreamError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apperr.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid JSON response: %w", err)}
	}
	return nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
