package pds

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"Fedgate/internal/api/handlers"
	"Fedgate/internal/api/middleware"
	"Fedgate/internal/api/request"
	"Fedgate/internal/core/registrations"
	"Fedgate/internal/core/sessions"
)

// Connector is implemented by *registrations.Service.
type Connector interface {
	Connect(ctx context.Context, webID string) (*registrations.ConnectRequest, error)
	CompleteConnect(ctx context.Context, customerID string, pending registrations.ConnectRequest, code string) (*sessions.Session, error)
}

// SessionTracker is implemented by *sessions.Manager.
type SessionTracker interface {
	Active(ctx context.Context, customerID string) (*sessions.Session, error)
	End(ctx context.Context, customerID string) error
}

// ConnectHandler lets a logged-in customer connect the PDS hosting their
// WebID directly, without going through the identity provider.
type ConnectHandler struct {
	connector Connector
	sessions  SessionTracker
	cookies   *middleware.CookieAuth
}

func NewConnectHandler(connector Connector, tracker SessionTracker, cookies *middleware.CookieAuth) *ConnectHandler {
	return &ConnectHandler{connector: connector, sessions: tracker, cookies: cookies}
}

type connectRequest struct {
	WebID string `json:"webId" validate:"required"`
}

type connectResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// HandleConnect starts an authorization at the customer's PDS
// POST /pds/connect
//
// Body: { "webId": "..." }
func (h *ConnectHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := request.Decode(w, r, &req); err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	pending, err := h.connector.Connect(r.Context(), req.WebID)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	if err := h.cookies.RememberConnect(w, r, pending.State, pending.Provider, pending.WebID); err != nil {
		slog.Error("failed to save connect cookie", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to save authorization state")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, connectResponse{URL: pending.URL, State: pending.State})
}

type connectionResponse struct {
	Connected      bool       `json:"connected"`
	WebID          string     `json:"webId,omitempty"`
	PDSProvider    string     `json:"pdsProvider,omitempty"`
	ConnectedSince *time.Time `json:"connectedSince,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

func connection(s *sessions.Session) connectionResponse {
	return connectionResponse{
		Connected:      true,
		WebID:          s.WebID,
		PDSProvider:    s.PDSProvider,
		ConnectedSince: &s.CreatedAt,
		ExpiresAt:      &s.ExpiresAt,
	}
}

// HandleCallback redeems the code the PDS redirected back with
// GET /pds/callback?code=&state=
func (h *ConnectHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		handlers.WriteError(w, http.StatusBadRequest, "AuthorizationDenied", errCode+": "+q.Get("error_description"))
		return
	}

	state, provider, webID := h.cookies.PendingConnect(r)
	if state == "" || q.Get("state") != state {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidState", "state does not match the pending authorization")
		return
	}
	if err := h.cookies.ClearConnect(w, r); err != nil {
		slog.Warn("failed to clear connect cookie", "error", err)
	}

	pending := registrations.ConnectRequest{State: state, Provider: provider, WebID: webID}
	session, err := h.connector.CompleteConnect(r.Context(), middleware.GetCustomerID(r), pending, q.Get("code"))
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, connection(session))
}

// HandleConnection reports whether the customer has a usable PDS session
// GET /pds/connection
func (h *ConnectHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Active(r.Context(), middleware.GetCustomerID(r))
	if errors.Is(err, sessions.ErrNoActiveSession) || errors.Is(err, sessions.ErrSessionExpired) {
		handlers.WriteJSON(w, http.StatusOK, connectionResponse{Connected: false})
		return
	}
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, connection(session))
}

// HandleDisconnect deletes the customer's PDS sessions
// POST /pds/disconnect
func (h *ConnectHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), middleware.GetCustomerID(r)); err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
