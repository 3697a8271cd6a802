package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	t.Setenv("SESSION_SECRET", strings.Repeat("s", 32))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://onelogin.local", cfg.ProviderURL)
	assert.Equal(t, ClientTypePrivate, cfg.ClientType)
	assert.Equal(t, "did:web:fep.local", cfg.ServiceDID)
	assert.Equal(t, 5*time.Minute, cfg.WebIDCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.True(t, cfg.AllowPrivateNetworks)

	gw := cfg.Gateway()
	assert.True(t, gw.BypassDomainVerification)
	assert.Equal(t, 5*time.Minute, gw.CacheTTL)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("OIDC_PROVIDER_URL", "https://idp.example.org/")
	t.Setenv("CLIENT_TYPE", "government")
	t.Setenv("APP_ENV", "production")
	t.Setenv("WEBID_CACHE_TTL", "90")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://idp.example.org", cfg.ProviderURL)
	assert.Equal(t, 90*time.Second, cfg.WebIDCacheTTL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AllowPrivateNetworks)

	gw := cfg.Gateway()
	assert.Equal(t, ClientTypeGovernment, gw.ClientType)
	assert.False(t, gw.BypassDomainVerification)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing encryption key", map[string]string{"ENCRYPTION_KEY": ""}},
		{"short session secret", map[string]string{"SESSION_SECRET": "short"}},
		{"bad client type", map[string]string{"CLIENT_TYPE": "corporate"}},
		{"bad duration", map[string]string{"WEBID_CACHE_TTL": "soon"}},
		{"client id without secret", map[string]string{"CLIENT_ID": "abc", "CLIENT_SECRET": ""}},
		{"service did not a did", map[string]string{"SERVICE_DID": "web:fep.local"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FEDGATE_DOTENV_PROBE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FEDGATE_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("FEDGATE_DOTENV_PROBE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
