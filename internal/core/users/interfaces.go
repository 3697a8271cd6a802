package users

import (
	"context"
	"time"
)

// UserRepository defines the interface for user data persistence
type UserRepository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByCustomerID(ctx context.Context, customerID string) (*User, error)

	// RecordLogin refreshes the profile fields the provider owns and stamps
	// the login time.
	RecordLogin(ctx context.Context, customerID, name, webID, subject string, at time.Time) (*User, error)

	// UpsertAlias inserts the alias or, for an existing (customer, audience)
	// pair, updates the alias WebID and last-used time keeping created_at.
	UpsertAlias(ctx context.Context, alias *WebIDAlias) error
	ListAliases(ctx context.Context, customerID string) ([]*WebIDAlias, error)
}

// UserService defines the interface for user business logic
type UserService interface {
	// FindOrCreate returns the local user for a provider login, creating it
	// on first sign-in. Users are matched by email.
	FindOrCreate(ctx context.Context, profile LoginProfile) (*User, error)
	GetByCustomerID(ctx context.Context, customerID string) (*User, error)

	// RecordAlias stores alias provenance for a customer and audience.
	RecordAlias(ctx context.Context, customerID, audience, aliasWebID string) error
	Aliases(ctx context.Context, customerID string) ([]*WebIDAlias, error)
}
