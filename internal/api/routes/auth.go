package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	authhandlers "Fedgate/internal/api/handlers/auth"
	"Fedgate/internal/api/middleware"
)

// RegisterAuthRoutes registers the login and token endpoints.
//
// The token grant proxies every call to the identity provider, so it gets
// its own limiter on top of the global one.
func RegisterAuthRoutes(ctx context.Context, r chi.Router, handler *authhandlers.Handler, profile *authhandlers.ProfileHandler, cookies *middleware.CookieAuth, allowedOrigins []string) {
	tokenLimiter := middleware.NewRateLimiter(ctx, 20, time.Minute)

	r.Route("/auth", func(r chi.Router) {
		r.Use(corsMiddleware(allowedOrigins))

		r.Get("/authorize-url", handler.HandleAuthorizeURL)
		r.Get("/callback", handler.HandleCallback)
		r.With(tokenLimiter.Middleware).Post("/token", handler.HandleToken)

		r.With(cookies.RequireCustomer).Get("/me", profile.HandleMe)
		r.With(cookies.RequireCustomer).Post("/logout", handler.HandleLogout)
	})
}

// corsMiddleware lets the configured front-ends call the API with the login cookie.
func corsMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-CSRF-Token",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
