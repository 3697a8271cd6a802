package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Fedgate/internal/api/handlers/wellknown"
)

// RegisterWellKnownRoutes registers the did:web document and the metrics endpoint.
//
// Spec: https://w3c-ccg.github.io/did-method-web/
func RegisterWellKnownRoutes(r chi.Router, did *wellknown.DIDHandler) {
	r.Get("/.well-known/did.json", did.HandleDIDDocument)
	r.Handle("/metrics", promhttp.Handler())
}
