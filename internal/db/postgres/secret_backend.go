package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"Fedgate/internal/vault"
)

// SecretBackend stores sealed values in the secrets table. It implements
// vault.Backend and never sees plaintext.
type SecretBackend struct {
	db *sql.DB
}

func NewSecretBackend(db *sql.DB) *SecretBackend {
	return &SecretBackend{db: db}
}

func (b *SecretBackend) Load(ctx context.Context, key string) (string, error) {
	var sealed string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = $1`, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", vault.ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load secret %q: %w", key, err)
	}
	return sealed, nil
}

func (b *SecretBackend) Save(ctx context.Context, key, sealed string) error {
	query := `
		INSERT INTO secrets (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := b.db.ExecContext(ctx, query, key, sealed); err != nil {
		return fmt.Errorf("failed to save secret %q: %w", key, err)
	}
	return nil
}
