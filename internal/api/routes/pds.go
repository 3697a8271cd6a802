package routes

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"

	"Fedgate/internal/api/handlers/pds"
	"Fedgate/internal/api/middleware"
)

// RegisterPDSRoutes registers the endpoints PDS providers call.
// Challenges are signed with the service key, so they are rate limited per IP.
func RegisterPDSRoutes(ctx context.Context, r chi.Router, handler *pds.Handler) {
	challengeLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute)

	r.With(challengeLimiter.Middleware).Post("/pds/did-challenge", handler.HandleDIDChallenge)
	r.Post("/pds/register", handler.HandleRegister)
	r.Get("/pds/register/{id}/status", handler.HandleStatus)
}

// RegisterPDSConnectRoutes registers the customer-facing PDS connection
// endpoints. All of them need a logged-in customer.
func RegisterPDSConnectRoutes(r chi.Router, handler *pds.ConnectHandler, cookies *middleware.CookieAuth) {
	r.Group(func(r chi.Router) {
		r.Use(cookies.RequireCustomer)
		r.Post("/pds/connect", handler.HandleConnect)
		r.Get("/pds/callback", handler.HandleCallback)
		r.Get("/pds/connection", handler.HandleConnection)
		r.Post("/pds/disconnect", handler.HandleDisconnect)
	})
}
