package registrations

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state a PDS reports for a service registration.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusActive   Status = "active"
	StatusRevoked  Status = "revoked"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusActive, StatusRevoked:
		return true
	}
	return false
}

// Endpoints are the PDS endpoints learned from discovery.
type Endpoints struct {
	Authorization string `json:"authorization,omitempty"`
	Token         string `json:"token,omitempty"`
	Credentials   string `json:"credentials,omitempty"`
}

// Registration is this service's registration with one PDS provider.
// AccessToken and RefreshToken hold sealed values; they are never plaintext
// once the registration has been handed to a Repository.
type Registration struct {
	ID             int64           `json:"-"`
	RegistrationID string          `json:"registrationId"`
	ServiceDID     string          `json:"serviceDid"`
	PDSProvider    string          `json:"pdsProvider"`
	PDSURL         string          `json:"pdsUrl"`
	DiscoveryURL   string          `json:"pdsDiscoveryUrl,omitempty"`
	Status         Status          `json:"status"`
	Endpoints      Endpoints       `json:"endpoints"`
	Capabilities   []string        `json:"providerCapabilities"`
	PublicKeyJWK   json.RawMessage `json:"publicKeyJwk,omitempty"`
	AccessToken    string          `json:"-"`
	RefreshToken   string          `json:"-"`
	VerifiedAt     *time.Time      `json:"verificationTimestamp,omitempty"`
	CreatedAt      time.Time       `json:"registrationTimestamp"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
