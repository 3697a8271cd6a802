package routes

import (
	"github.com/go-chi/chi/v5"

	"Fedgate/internal/api/handlers/credentials"
	"Fedgate/internal/api/middleware"
)

// RegisterCredentialRoutes registers the customer credential endpoints.
// All of them need a logged-in customer.
func RegisterCredentialRoutes(r chi.Router, handler *credentials.Handler, cookies *middleware.CookieAuth, allowedOrigins []string) {
	r.Route("/credentials", func(r chi.Router) {
		r.Use(corsMiddleware(allowedOrigins))
		r.Use(cookies.RequireCustomer)

		r.Get("/", handler.HandleList)
		r.Post("/", handler.HandleStore)
		// form-data is registered before {id} so it is not captured as an id
		r.Get("/form-data", handler.HandleGetFormData)
		r.Post("/form-data", handler.HandleStoreFormData)
		r.Get("/{id}", handler.HandleGet)
	})
}
