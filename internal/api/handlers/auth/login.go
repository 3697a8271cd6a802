package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"Fedgate/internal/api/handlers"
	"Fedgate/internal/api/middleware"
	coreauth "Fedgate/internal/core/auth"
	"Fedgate/internal/solid/oidc"
)

// Provider is the identity-provider surface the auth handlers use;
// *oidc.Registry implements it.
type Provider interface {
	AuthorizationURL(state, scope string) (*oidc.AuthRequest, error)
	ExchangeCode(ctx context.Context, code string) (*oidc.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*oidc.TokenSet, error)
}

// LoginCompleter finishes a login; *coreauth.Service implements it.
type LoginCompleter interface {
	CompleteLogin(ctx context.Context, code, expectedNonce string) (*coreauth.Login, error)
}

// SessionEnder drops a customer's stored session on logout.
type SessionEnder interface {
	End(ctx context.Context, customerID string) error
}

// Handler serves the /auth endpoints.
type Handler struct {
	provider Provider
	logins   LoginCompleter
	sessions SessionEnder
	cookies  *middleware.CookieAuth
}

func NewHandler(provider Provider, logins LoginCompleter, sessions SessionEnder, cookies *middleware.CookieAuth) *Handler {
	return &Handler{provider: provider, logins: logins, sessions: sessions, cookies: cookies}
}

type authorizeURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// HandleAuthorizeURL builds the provider authorize URL
// GET /auth/authorize-url?state=
//
// A state is generated when the caller sends none. State and nonce are kept
// in the login cookie for the callback.
func (h *Handler) HandleAuthorizeURL(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		generated, err := oidc.GenerateNonce()
		if err != nil {
			handlers.HandleServiceError(w, r, err)
			return
		}
		state = generated
	}

	req, err := h.provider.AuthorizationURL(state, r.URL.Query().Get("scope"))
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	if err := h.cookies.RememberLogin(w, r, req.State, req.Nonce); err != nil {
		slog.Error("failed to save login cookie", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to save authorization state")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, authorizeURLResponse{URL: req.URL, State: req.State})
}

type callbackResponse struct {
	CustomerID string    `json:"customerId"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	WebID      string    `json:"webId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// HandleCallback completes a login
// GET /auth/callback?code=&state=
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		handlers.WriteError(w, http.StatusBadRequest, "AuthorizationDenied", errCode+": "+q.Get("error_description"))
		return
	}

	expectedState, nonce := h.cookies.PendingLogin(r)
	if expectedState == "" || q.Get("state") != expectedState {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidState", "state does not match the pending authorization")
		return
	}

	login, err := h.logins.CompleteLogin(r.Context(), q.Get("code"), nonce)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	if err := h.cookies.CompleteLogin(w, r, login.User.CustomerID); err != nil {
		slog.Error("failed to save login cookie", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to save login")
		return
	}

	handlers.WriteJSON(w, http.StatusOK, callbackResponse{
		CustomerID: login.User.CustomerID,
		Email:      login.User.Email,
		Name:       login.User.Name,
		WebID:      login.User.WebID,
		ExpiresAt:  login.ExpiresAt,
	})
}

// HandleLogout ends the stored session and expires the cookie
// POST /auth/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if customerID := middleware.GetCustomerID(r); customerID != "" {
		if err := h.sessions.End(r.Context(), customerID); err != nil {
			handlers.HandleServiceError(w, r, err)
			return
		}
	}
	if err := h.cookies.Logout(w, r); err != nil {
		slog.Warn("failed to expire login cookie", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
