package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSecretNotFound is returned when no secret is stored under a key
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore keeps opaque secrets encrypted at rest.
type SecretStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, secret []byte) error
}

// Backend persists already-encrypted values. It never sees plaintext.
type Backend interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, sealed string) error
}

// Sealer is the subset of Cipher used by callers that encrypt individual fields.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

type encryptedStore struct {
	cipher  Sealer
	backend Backend
}

// NewSecretStore layers encryption over a Backend.
func NewSecretStore(cipher Sealer, backend Backend) SecretStore {
	return &encryptedStore{cipher: cipher, backend: backend}
}

func (s *encryptedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	plain, err := s.cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open secret %q: %w", key, err)
	}
	return []byte(plain), nil
}

func (s *encryptedStore) Put(ctx context.Context, key string, secret []byte) error {
	if key == "" {
		return errors.New("secret key is required")
	}

	sealed, err := s.cipher.Seal(string(secret))
	if err != nil {
		return fmt.Errorf("failed to seal secret %q: %w", key, err)
	}
	return s.backend.Save(ctx, key, sealed)
}

// MemoryBackend is an in-process Backend for development and tests.
type MemoryBackend struct {
	values map[string]string
	mu     sync.RWMutex
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (m *MemoryBackend) Save(_ context.Context, key, sealed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = sealed
	return nil
}
