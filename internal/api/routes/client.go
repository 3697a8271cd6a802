package routes

import (
	"github.com/go-chi/chi/v5"

	"Fedgate/internal/api/handlers/client"
)

// RegisterClientRoutes registers the OIDC client registration endpoints
func RegisterClientRoutes(r chi.Router, handler *client.Handler) {
	r.Post("/client/register", handler.HandleRegister)
	r.Get("/client/status", handler.HandleStatus)
	r.Post("/client/verify-domain", handler.HandleVerifyDomain)
}
