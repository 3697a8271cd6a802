package oidc

import "time"

// ClientType selects how the identity provider treats this relying party.
type ClientType string

const (
	// ClientTypeGovernment clients must prove domain ownership and only ever see master WebIDs.
	ClientTypeGovernment ClientType = "government"
	ClientTypePrivate    ClientType = "private"
)

const (
	DefaultScope      = "openid profile email webid"
	DefaultClientName = "FEP Service"
)

// ClientRegistration is the client's registration with the identity provider.
// It is replaced as a whole on change; only VerifiedAt ever moves after creation.
type ClientRegistration struct {
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	RedirectURIs []string   `json:"redirect_uris"`
	ClientName   string     `json:"client_name"`
	Scope        string     `json:"scope"`
	Domain       string     `json:"domain"`
	ClientType   ClientType `json:"client_type"`
	// PreTrusted registrations come from static credentials and skip domain verification.
	PreTrusted bool       `json:"pre_trusted,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// Verified reports whether the registration counts as domain-verified.
func (r *ClientRegistration) Verified() bool {
	return r.PreTrusted || r.VerifiedAt != nil
}

// Public is the view of the registration that may be shown to callers. It never contains the secret.
type Public struct {
	ClientID     string     `json:"client_id"`
	RedirectURIs []string   `json:"redirect_uris"`
	ClientName   string     `json:"client_name"`
	Scope        string     `json:"scope"`
	Domain       string     `json:"domain"`
	ClientType   ClientType `json:"client_type"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
}

func (r *ClientRegistration) Public() Public {
	return Public{
		ClientID:     r.ClientID,
		RedirectURIs: append([]string(nil), r.RedirectURIs...),
		ClientName:   r.ClientName,
		Scope:        r.Scope,
		Domain:       r.Domain,
		ClientType:   r.ClientType,
		VerifiedAt:   r.VerifiedAt,
	}
}

func (r *ClientRegistration) clone() *ClientRegistration {
	c := *r
	c.RedirectURIs = append([]string(nil), r.RedirectURIs...)
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		c.VerifiedAt = &t
	}
	return &c
}

// State is the registry lifecycle position.
type State string

const (
	StateUnregistered State = "unregistered"
	StateRegistering  State = "registering"
	StateUnverified   State = "registered_unverified"
	StateVerified     State = "registered_verified"
)

// Status is the snapshot returned by Registry.Status.
type Status struct {
	Registered         bool    `json:"registered"`
	Verified           bool    `json:"verified"`
	State              State   `json:"state"`
	ClientRegistration *Public `json:"clientRegistration,omitempty"`
}
