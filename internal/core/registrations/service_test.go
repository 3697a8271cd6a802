package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fedgate/internal/core/apperr"
	"Fedgate/internal/solid/pds"
	"Fedgate/internal/vault"
)

type staticKey struct {
	jwk json.RawMessage
	err error
}

func (k staticKey) PublicJWKJSON() (json.RawMessage, error) { return k.jwk, k.err }

func newTestService(t *testing.T, h http.Handler) (*Service, *MemoryRepository, *vault.Cipher, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cipher, err := vault.NewCipher(make([]byte, 32))
	require.NoError(t, err)

	repo := NewMemoryRepository()
	svc := NewService(ServiceArgs{
		Identity:    Identity{DID: "did:web:fep.local", Domain: "fep.local", ServiceURL: "https://fep.local/"},
		Repo:        repo,
		PDS:         pds.NewClient(srv.Client()),
		Keys:        staticKey{jwk: json.RawMessage(`{"kty":"OKP","crv":"Ed25519","x":"abc","kid":"key-1"}`)},
		TokenSealer: cipher,
	})
	return svc, repo, cipher, srv.URL
}

func TestRegister(t *testing.T) {
	var received pds.ServiceRegistration
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/solid", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token_endpoint":         "https://pds.test/token",
			"authorization_endpoint": "https://pds.test/authorize",
			"credential_endpoint":    "https://pds.test/credentials",
			"capabilities":           []string{"vc-store"},
		})
	})
	mux.HandleFunc("/pds/register", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"registrationId": "reg-42",
			"status":         "pending",
			"access_token":   "pds-access",
		})
	})

	svc, repo, cipher, base := newTestService(t, mux)

	reg, err := svc.Register(context.Background(), base+"/")
	require.NoError(t, err)

	assert.Equal(t, "did:web:fep.local", received.ServiceDID)
	assert.Equal(t, "fep.local", received.Domain)
	assert.Equal(t, "Financial Entitlement Platform Application", received.Description)
	assert.Equal(t, []string{"read:credentials", "verify:credentials"}, received.Capabilities)
	assert.Equal(t, "https://fep.local/pds/callback", received.RedirectURL)
	assert.Equal(t, "https://fep.local/pds/did-challenge", received.ChallengeEndpoint)
	assert.JSONEq(t, `{"kty":"OKP","crv":"Ed25519","x":"abc","kid":"key-1"}`, string(received.PublicKeyJwk))

	assert.Equal(t, "reg-42", reg.RegistrationID)
	assert.Equal(t, StatusPending, reg.Status)
	assert.Equal(t, "127.0.0.1", reg.PDSProvider)
	assert.Equal(t, base, reg.PDSURL)
	assert.Equal(t, "https://pds.test/credentials", reg.Endpoints.Credentials)
	assert.Equal(t, []string{"vc-store"}, reg.Capabilities)
	assert.Nil(t, reg.VerifiedAt)

	// Tokens are sealed before they reach the repository.
	stored, err := repo.GetByRegistrationID(context.Background(), "reg-42")
	require.NoError(t, err)
	assert.NotEqual(t, "pds-access", stored.AccessToken)
	plain, err := cipher.Open(stored.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "pds-access", plain)
	assert.Empty(t, stored.RefreshToken)

	byProvider, err := svc.ForProvider(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "reg-42", byProvider.RegistrationID)
}

func TestRegister_UsesAdvertisedEndpoint(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/.well-known/solid", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"registration_endpoint": base + "/custom/register"})
	})
	mux.HandleFunc("/custom/register", func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"registrationId":"reg-1","status":"bogus"}`))
	})

	svc, _, _, url := newTestService(t, mux)
	base = url

	reg, err := svc.Register(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, StatusPending, reg.Status, "unknown statuses are stored as pending")
}

func TestRegister_InvalidURL(t *testing.T) {
	svc, _, _, _ := newTestService(t, http.NotFoundHandler())

	for _, raw := range []string{"", "pds.example", "ftp://pds.example"} {
		_, err := svc.Register(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidPDSURL, raw)
		assert.True(t, apperr.IsValidation(err))
	}
}

func TestRegister_UpstreamFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/solid", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/pds/register", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusConflict)
	})

	svc, repo, _, base := newTestService(t, mux)

	_, err := svc.Register(context.Background(), base)
	require.Error(t, err)

	var failed *RegistrationFailedError
	require.True(t, errors.As(err, &failed))
	assert.ErrorIs(t, err, pds.ErrConflict)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, "PdsRegistrationFailed", apperr.CodeOf(err))

	_, err = repo.GetByProvider(context.Background(), "127.0.0.1")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestRegister_KeyFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/solid", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	svc, _, _, base := newTestService(t, mux)
	svc.keys = staticKey{err: errors.New("no key")}

	_, err := svc.Register(context.Background(), base)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestMemoryRepository_UpdateStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", StatusVerified, nil), ErrRegistrationNotFound)

	_, err := repo.Create(ctx, &Registration{RegistrationID: "r1", Status: StatusPending})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, "r1", StatusActive, nil))

	got, err := repo.GetByRegistrationID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Nil(t, got.VerifiedAt)
}
