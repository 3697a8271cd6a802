package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"Fedgate/internal/core/users"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type postgresUserRepo struct {
	db *sql.DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sql.DB) users.UserRepository {
	return &postgresUserRepo{db: db}
}

const userColumns = `id, customer_id, email, name, webid, oidc_subject, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*users.User, error) {
	u := &users.User{}
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.CustomerID, &u.Email, &u.Name, &u.WebID, &u.Subject, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// Create inserts a new user into the users table
func (r *postgresUserRepo) Create(ctx context.Context, user *users.User) (*users.User, error) {
	query := `
		INSERT INTO users (customer_id, email, name, webid, oidc_subject, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.CustomerID, user.Email, user.Name, user.WebID, user.Subject, user.LastLoginAt))
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// GetByEmail retrieves a user by email
func (r *postgresUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetByCustomerID retrieves a user by customer id
func (r *postgresUserRepo) GetByCustomerID(ctx context.Context, customerID string) (*users.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE customer_id = $1`, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by customer id: %w", err)
	}
	return u, nil
}

func (r *postgresUserRepo) RecordLogin(ctx context.Context, customerID, name, webID, subject string, at time.Time) (*users.User, error) {
	query := `
		UPDATE users
		SET name = $2, webid = $3, oidc_subject = $4, last_login_at = $5, updated_at = NOW()
		WHERE customer_id = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, customerID, name, webID, subject, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	return u, nil
}

// UpsertAlias keeps created_at of an existing (customer, audience) row.
func (r *postgresUserRepo) UpsertAlias(ctx context.Context, alias *users.WebIDAlias) error {
	query := `
		INSERT INTO webid_aliases (customer_id, audience, alias_webid, service_type, service_name, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (customer_id, audience) DO UPDATE
		SET alias_webid = EXCLUDED.alias_webid,
		    service_type = EXCLUDED.service_type,
		    service_name = EXCLUDED.service_name,
		    last_used_at = EXCLUDED.last_used_at`

	at := alias.LastUsedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query,
		alias.CustomerID, alias.Audience, alias.AliasWebID, alias.ServiceType, alias.ServiceName, at)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return users.ErrUserNotFound
		}
		return fmt.Errorf("failed to upsert webid alias: %w", err)
	}
	return nil
}

func (r *postgresUserRepo) ListAliases(ctx context.Context, customerID string) ([]*users.WebIDAlias, error) {
	query := `
		SELECT customer_id, audience, alias_webid, service_type, service_name, created_at, last_used_at
		FROM webid_aliases
		WHERE customer_id = $1
		ORDER BY last_used_at DESC, audience`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webid aliases: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var out []*users.WebIDAlias
	for rows.Next() {
		a := &users.WebIDAlias{}
		if err := rows.Scan(&a.CustomerID, &a.Audience, &a.AliasWebID, &a.ServiceType, &a.ServiceName, &a.CreatedAt, &a.LastUsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webid alias row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webid alias rows: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
