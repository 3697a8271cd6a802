package sessions

import "time"

// Session is one customer's authenticated connection to their identity
// provider and PDS. Token fields are sealed whenever a Session crosses the
// Repository boundary; Manager hands out copies with opened tokens.
type Session struct {
	ID           int64
	CustomerID   string
	PDSProvider  string
	WebID        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// TokenEndpoint is where the refresh grant goes; empty means the
	// identity provider.
	TokenEndpoint string
}

// Expired reports whether the access token should be refreshed at now,
// treating tokens within skew of their expiry as already expired.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(s.ExpiresAt)
}
