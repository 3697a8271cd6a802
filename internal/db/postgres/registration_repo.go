package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"Fedgate/internal/core/registrations"
)

type postgresRegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepository creates a PostgreSQL PDS registration repository
func NewRegistrationRepository(db *sql.DB) registrations.Repository {
	return &postgresRegistrationRepo{db: db}
}

const registrationColumns = `id, registration_id, service_did, pds_provider, pds_url, discovery_url, status,
	endpoints, capabilities, public_key_jwk, access_token, refresh_token, verified_at, created_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }) (*registrations.Registration, error) {
	reg := &registrations.Registration{}
	var (
		endpoints  []byte
		publicKey  []byte
		verifiedAt sql.NullTime
	)
	err := row.Scan(&reg.ID, &reg.RegistrationID, &reg.ServiceDID, &reg.PDSProvider, &reg.PDSURL, &reg.DiscoveryURL,
		&reg.Status, &endpoints, pq.Array(&reg.Capabilities), &publicKey, &reg.AccessToken, &reg.RefreshToken,
		&verifiedAt, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(endpoints) > 0 {
		if err := json.Unmarshal(endpoints, &reg.Endpoints); err != nil {
			return nil, fmt.Errorf("invalid endpoints for registration %s: %w", reg.RegistrationID, err)
		}
	}
	if len(publicKey) > 0 {
		reg.PublicKeyJWK = json.RawMessage(publicKey)
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		reg.VerifiedAt = &t
	}
	return reg, nil
}

func (r *postgresRegistrationRepo) Create(ctx context.Context, reg *registrations.Registration) (*registrations.Registration, error) {
	endpoints, err := json.Marshal(reg.Endpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal endpoints: %w", err)
	}
	var publicKey any
	if len(reg.PublicKeyJWK) > 0 {
		publicKey = []byte(reg.PublicKeyJWK)
	}
	capabilities := reg.Capabilities
	if capabilities == nil {
		capabilities = []string{}
	}

	query := `
		INSERT INTO pds_registrations (registration_id, service_did, pds_provider, pds_url, discovery_url, status,
			endpoints, capabilities, public_key_jwk, access_token, refresh_token, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + registrationColumns

	created, err := scanRegistration(r.db.QueryRowContext(ctx, query,
		reg.RegistrationID, reg.ServiceDID, reg.PDSProvider, reg.PDSURL, reg.DiscoveryURL, reg.Status,
		endpoints, pq.Array(capabilities), publicKey, reg.AccessToken, reg.RefreshToken, reg.VerifiedAt))
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, fmt.Errorf("registration %s already exists: %w", reg.RegistrationID, err)
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	return created, nil
}

func (r *postgresRegistrationRepo) GetByRegistrationID(ctx context.Context, registrationID string) (*registrations.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM pds_registrations WHERE registration_id = $1`, registrationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registrations.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

// GetByProvider returns the most recently created registration for provider.
func (r *postgresRegistrationRepo) GetByProvider(ctx context.Context, provider string) (*registrations.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM pds_registrations WHERE pds_provider = $1 ORDER BY id DESC LIMIT 1`, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registrations.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration by provider: %w", err)
	}
	return reg, nil
}

func (r *postgresRegistrationRepo) UpdateStatus(ctx context.Context, registrationID string, status registrations.Status, verifiedAt *time.Time) error {
	query := `
		UPDATE pds_registrations
		SET status = $2, verified_at = COALESCE($3, verified_at), updated_at = NOW()
		WHERE registration_id = $1`

	result, err := r.db.ExecContext(ctx, query, registrationID, status, verifiedAt)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return registrations.ErrRegistrationNotFound
	}
	return nil
}
