package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// RegistrationStore persists the single ClientRegistration document.
type RegistrationStore interface {
	Load(ctx context.Context) (*ClientRegistration, error)
	Save(ctx context.Context, reg *ClientRegistration) error
}

// FileStore keeps the registration as a JSON file. Writes go to a temp file
// in the same directory and are renamed into place, so a reader never sees
// a half-written document.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (*ClientRegistration, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRegistration
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client registration: %w", err)
	}

	var reg ClientRegistration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse client registration %s: %w", s.path, err)
	}
	if reg.ClientID == "" {
		return nil, fmt.Errorf("client registration %s has no client_id", s.path)
	}
	return &reg, nil
}

func (s *FileStore) Save(_ context.Context, reg *ClientRegistration) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client registration: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".oidc-client-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write client registration: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace client registration: %w", err)
	}
	return nil
}

// Secrets keeps opaque secrets encrypted at rest; vault.SecretStore implements it.
type Secrets interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, secret []byte) error
}

// ClientSecretKey is the secret store key holding the client secret.
const ClientSecretKey = "oidc/client_secret"

// SealedStore wraps a RegistrationStore so the client secret lives only in
// the secret store. The wrapped document is written with an empty secret.
type SealedStore struct {
	Inner   RegistrationStore
	Secrets Secrets
}

func (s *SealedStore) Load(ctx context.Context) (*ClientRegistration, error) {
	reg, err := s.Inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	if reg.ClientSecret != "" {
		// Documents written before the secret store was introduced.
		return reg, nil
	}

	secret, err := s.Secrets.Get(ctx, ClientSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load client secret: %w", err)
	}
	reg.ClientSecret = string(secret)
	return reg, nil
}

func (s *SealedStore) Save(ctx context.Context, reg *ClientRegistration) error {
	if err := s.Secrets.Put(ctx, ClientSecretKey, []byte(reg.ClientSecret)); err != nil {
		return fmt.Errorf("failed to store client secret: %w", err)
	}
	doc := reg.clone()
	doc.ClientSecret = ""
	return s.Inner.Save(ctx, doc)
}
