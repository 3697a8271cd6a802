package oidc

import (
	"context"
	"net/url"
)

// AliasDocument is the provider's answer to a WebID resolution request: the
// master WebID and its per-audience aliases.
type AliasDocument struct {
	ID      string            `json:"id"`
	Aliases map[string]string `json:"aliases"`
}

// FetchAliases asks the provider for every alias of webID. Errors are returned
// as-is; fallback policy belongs to the caller.
func (r *Registry) FetchAliases(ctx context.Context, webID string) (*AliasDocument, error) {
	var doc AliasDocument
	if err := r.getJSON(ctx, "/webid/resolve", url.Values{"webid": {webID}}, "", &doc); err != nil {
		return nil, err
	}
	if doc.Aliases == nil {
		doc.Aliases = map[string]string{}
	}
	return &doc, nil
}

// ResolveWebIDAlias maps a WebID that may be an alias back to its master
// WebID. Government clients only ever receive master identifiers, so for them
// this is the identity. Resolution never fails: on any error the raw WebID is
// returned so that login is not blocked by the alias service.
func (r *Registry) ResolveWebIDAlias(ctx context.Context, rawWebID string) string {
	if r.cfg.ClientType == ClientTypeGovernment || rawWebID == "" {
		return rawWebID
	}

	doc, err := r.FetchAliases(ctx, rawWebID)
	if err != nil {
		r.log.Warn("webid alias resolution failed, using raw webid", "error", err)
		return rawWebID
	}
	if doc.ID == "" {
		return rawWebID
	}
	return doc.ID
}
