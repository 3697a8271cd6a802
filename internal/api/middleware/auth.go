package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"Fedgate/internal/api/handlers"
)

// Context keys for storing user information
type contextKey string

const (
	CustomerIDKey contextKey = "customer_id"
)

const (
	// SessionName is the name of the login cookie.
	SessionName = "fedgate_session"

	// MinSessionSecretLength is the minimum cookie signing secret length.
	MinSessionSecretLength = 32

	keyCustomerID = "customer_id"
	keyState      = "oauth_state"
	keyNonce      = "oauth_nonce"

	keyConnectState    = "pds_connect_state"
	keyConnectProvider = "pds_connect_provider"
	keyConnectWebID    = "pds_connect_webid"
)

// CookieAuth keeps the login state in a signed and encrypted cookie: the
// anti-CSRF state and nonce between authorize and callback, then the
// customer id once the login completed.
type CookieAuth struct {
	store *sessions.CookieStore
}

// NewCookieAuth creates the cookie store. secure marks cookies Secure, which
// production deployments behind TLS want.
func NewCookieAuth(secret string, secure bool) (*CookieAuth, error) {
	if len(secret) < MinSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength)
	}
	// The cookie is signed with the secret and encrypted with a key derived from it.
	blockKey := sha256.Sum256([]byte("fedgate-cookie-encryption:" + secret))
	store := sessions.NewCookieStore([]byte(secret), blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieAuth{store: store}, nil
}

func (a *CookieAuth) session(r *http.Request) *sessions.Session {
	// Get never returns a nil session; a cookie that fails to decode yields a fresh one.
	s, _ := a.store.Get(r, SessionName)
	return s
}

// RememberLogin stores the state and nonce of a pending authorization request.
func (a *CookieAuth) RememberLogin(w http.ResponseWriter, r *http.Request, state, nonce string) error {
	s := a.session(r)
	s.Values[keyState] = state
	s.Values[keyNonce] = nonce
	return s.Save(r, w)
}

// PendingLogin returns the remembered state and nonce.
func (a *CookieAuth) PendingLogin(r *http.Request) (state, nonce string) {
	s := a.session(r)
	state, _ = s.Values[keyState].(string)
	nonce, _ = s.Values[keyNonce].(string)
	return state, nonce
}

// CompleteLogin replaces the pending authorization with the customer id.
func (a *CookieAuth) CompleteLogin(w http.ResponseWriter, r *http.Request, customerID string) error {
	s := a.session(r)
	delete(s.Values, keyState)
	delete(s.Values, keyNonce)
	s.Values[keyCustomerID] = customerID
	return s.Save(r, w)
}

// RememberConnect stores a pending PDS authorization next to the login.
func (a *CookieAuth) RememberConnect(w http.ResponseWriter, r *http.Request, state, provider, webID string) error {
	s := a.session(r)
	s.Values[keyConnectState] = state
	s.Values[keyConnectProvider] = provider
	s.Values[keyConnectWebID] = webID
	return s.Save(r, w)
}

// PendingConnect returns the remembered PDS authorization.
func (a *CookieAuth) PendingConnect(r *http.Request) (state, provider, webID string) {
	s := a.session(r)
	state, _ = s.Values[keyConnectState].(string)
	provider, _ = s.Values[keyConnectProvider].(string)
	webID, _ = s.Values[keyConnectWebID].(string)
	return state, provider, webID
}

// ClearConnect drops the pending PDS authorization so a state is used once.
func (a *CookieAuth) ClearConnect(w http.ResponseWriter, r *http.Request) error {
	s := a.session(r)
	delete(s.Values, keyConnectState)
	delete(s.Values, keyConnectProvider)
	delete(s.Values, keyConnectWebID)
	return s.Save(r, w)
}

// Logout expires the cookie.
func (a *CookieAuth) Logout(w http.ResponseWriter, r *http.Request) error {
	s := a.session(r)
	s.Options.MaxAge = -1
	return s.Save(r, w)
}

// RequireCustomer rejects requests without a logged-in customer and puts
// the customer id into the request context.
func (a *CookieAuth) RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID, _ := a.session(r).Values[keyCustomerID].(string)
		if customerID == "" {
			handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCustomerID(r.Context(), customerID)))
	})
}

// WithCustomerID returns ctx carrying customerID.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, CustomerIDKey, customerID)
}

// GetCustomerID extracts the customer id set by RequireCustomer.
func GetCustomerID(r *http.Request) string {
	id, _ := r.Context().Value(CustomerIDKey).(string)
	return id
}
