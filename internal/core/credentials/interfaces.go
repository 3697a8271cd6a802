package credentials

import (
	"context"
	"encoding/json"

	"Fedgate/internal/core/sessions"
	"Fedgate/internal/solid/pds"
	"Fedgate/internal/solid/webid"
)

// SessionSource hands out active sessions; *sessions.Manager implements it.
type SessionSource interface {
	Active(ctx context.Context, customerID string) (*sessions.Session, error)
}

// Resolver maps a master WebID to the WebID presented to an audience;
// *webid.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, webID, audience string) webid.Resolution
	ResolveAll(ctx context.Context, webID string, audiences []string) []webid.Resolution
}

// Store is the credential store client; *pds.Client implements it.
type Store interface {
	StoreCredential(ctx context.Context, t pds.Target, credential any) (json.RawMessage, error)
	ListCredentials(ctx context.Context, t pds.Target, credType string) ([]map[string]any, error)
	GetCredential(ctx context.Context, t pds.Target, id string) (map[string]any, error)
}

// AliasRecorder keeps alias provenance on the local user record.
type AliasRecorder interface {
	RecordAlias(ctx context.Context, customerID, audience, aliasWebID string) error
}
