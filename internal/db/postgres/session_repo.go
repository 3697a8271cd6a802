package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Fedgate/internal/core/sessions"
)

type postgresSessionRepo struct {
	db *sql.DB
}

// NewSessionRepository creates a PostgreSQL session repository. Token columns
// receive whatever the caller passes; sessions.Manager seals them first.
func NewSessionRepository(db *sql.DB) sessions.Repository {
	return &postgresSessionRepo{db: db}
}

const sessionColumns = `id, customer_id, pds_provider, webid, token_endpoint, access_token, refresh_token, expires_at, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*sessions.Session, error) {
	s := &sessions.Session{}
	err := row.Scan(&s.ID, &s.CustomerID, &s.PDSProvider, &s.WebID, &s.TokenEndpoint, &s.AccessToken, &s.RefreshToken,
		&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *postgresSessionRepo) FindActive(ctx context.Context, customerID string) (*sessions.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM pds_sessions
		WHERE customer_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sessions.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s, nil
}

// Save upserts on (customer_id, pds_provider) in one statement; the row's id
// and created_at survive a refresh.
func (r *postgresSessionRepo) Save(ctx context.Context, s *sessions.Session) (*sessions.Session, error) {
	query := `
		INSERT INTO pds_sessions (customer_id, pds_provider, webid, token_endpoint, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (customer_id, pds_provider) DO UPDATE
		SET webid = EXCLUDED.webid,
		    token_endpoint = EXCLUDED.token_endpoint,
		    access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + sessionColumns

	at := s.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	saved, err := scanSession(r.db.QueryRowContext(ctx, query,
		s.CustomerID, s.PDSProvider, s.WebID, s.TokenEndpoint, s.AccessToken, s.RefreshToken, s.ExpiresAt, at))
	if err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return saved, nil
}

func (r *postgresSessionRepo) Delete(ctx context.Context, customerID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pds_sessions WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return sessions.ErrSessionNotFound
	}
	return nil
}
