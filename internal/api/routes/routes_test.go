package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authhandlers "Fedgate/internal/api/handlers/auth"
	"Fedgate/internal/api/handlers/credentials"
	"Fedgate/internal/api/handlers/pds"
	"Fedgate/internal/api/handlers/wellknown"
	"Fedgate/internal/api/middleware"
	"Fedgate/internal/core/signing"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cookies, err := middleware.NewCookieAuth("routes-test-secret-routes-test-secret", false)
	require.NoError(t, err)
	signer, err := signing.Generate()
	require.NoError(t, err)
	doc, err := wellknown.NewDIDDocument("did:web:fep.local", "https://fep.local", signer)
	require.NoError(t, err)

	r := chi.NewRouter()
	RegisterAuthRoutes(ctx, r, authhandlers.NewHandler(nil, nil, nil, cookies), authhandlers.NewProfileHandler(nil), cookies, []string{"https://app.example"})
	RegisterPDSRoutes(ctx, r, pds.NewHandler(nil, nil))
	RegisterPDSConnectRoutes(r, pds.NewConnectHandler(nil, nil, cookies), cookies)
	RegisterCredentialRoutes(r, credentials.NewHandler(nil), cookies, []string{"https://app.example"})
	RegisterWellKnownRoutes(r, wellknown.NewDIDHandler(doc))
	return r
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	r := newTestRouter(t)

	protected := []struct{ method, path string }{
		{http.MethodGet, "/credentials"},
		{http.MethodPost, "/credentials"},
		{http.MethodGet, "/credentials/form-data"},
		{http.MethodPost, "/credentials/form-data"},
		{http.MethodGet, "/credentials/urn:uuid:1"},
		{http.MethodGet, "/auth/me"},
		{http.MethodPost, "/auth/logout"},
		{http.MethodPost, "/pds/connect"},
		{http.MethodGet, "/pds/callback"},
		{http.MethodGet, "/pds/connection"},
		{http.MethodPost, "/pds/disconnect"},
	}
	for _, p := range protected {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
		assert.Contains(t, rec.Body.String(), "AuthRequired")
	}
}

func TestPublicRoutes(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/did.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "did:web:fep.local#key-1")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/credentials", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
