// Package client serves the relying-party registration endpoints.
package client

import (
	"context"
	"log/slog"
	"net/http"

	"Fedgate/internal/api/handlers"
	"Fedgate/internal/solid/oidc"
)

// Registry is the part of *oidc.Registry these handlers use.
type Registry interface {
	LoadOrRegister(ctx context.Context) (*oidc.ClientRegistration, error)
	VerifyDomain(ctx context.Context) (bool, error)
	Status() oidc.Status
}

type Handler struct {
	registry Registry
}

func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

// HandleRegister loads or performs the client registration
// POST /client/register
//
// Answers with the public fields only; the client secret never leaves the registry.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registry.LoadOrRegister(r.Context())
	if err != nil {
		slog.Error("client registration failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "RegistrationFailed", "Failed to register OAuth client")
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, reg.Public())
}

// HandleStatus reports the registration state
// GET /client/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, h.registry.Status())
}

type verifyResponse struct {
	Verified bool        `json:"verified"`
	Status   oidc.Status `json:"status"`
}

// HandleVerifyDomain runs domain verification for government clients
// POST /client/verify-domain
func (h *Handler) HandleVerifyDomain(w http.ResponseWriter, r *http.Request) {
	ok, err := h.registry.VerifyDomain(r.Context())
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, verifyResponse{Verified: ok, Status: h.registry.Status()})
}
