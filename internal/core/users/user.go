package users

import (
	"time"
)

// User is a local account created on first sign-in through the identity
// provider. CustomerID is the stable identifier the rest of the gateway keys
// sessions and credentials by.
type User struct {
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CustomerID  string     `json:"customerId" db:"customer_id"`
	Email       string     `json:"email" db:"email"`
	Name        string     `json:"name" db:"name"`
	WebID       string     `json:"webId,omitempty" db:"webid"`
	Subject     string     `json:"-" db:"oidc_subject"`
	ID          int64      `json:"-" db:"id"`
}

// LoginProfile is what the identity provider tells us about a signed-in user.
type LoginProfile struct {
	Email   string `validate:"required,email"`
	Name    string
	WebID   string `validate:"required,url"`
	Subject string `validate:"required"`
}

// WebIDAlias records that a customer's WebID was presented to an audience
// under an alias.
type WebIDAlias struct {
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	LastUsedAt  time.Time `json:"lastUsedAt" db:"last_used_at"`
	CustomerID  string    `json:"-" db:"customer_id"`
	Audience    string    `json:"audience" db:"audience"`
	AliasWebID  string    `json:"aliasWebId" db:"alias_webid"`
	ServiceType string    `json:"serviceType" db:"service_type"`
	ServiceName string    `json:"serviceName" db:"service_name"`
}
