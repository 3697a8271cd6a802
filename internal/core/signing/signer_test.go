package signing

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)

	sig, err := s.Sign([]byte("abc"))
	require.NoError(t, err)
	assert.Len(t, sig, ed25519.SignatureSize)

	assert.True(t, s.Verify(s.PublicKey(), []byte("abc"), sig))
	assert.False(t, s.Verify(s.PublicKey(), []byte("abd"), sig))
	assert.False(t, s.Verify([]byte("short"), []byte("abc"), sig))

	other, err := Generate()
	require.NoError(t, err)
	assert.False(t, s.Verify(other.PublicKey(), []byte("abc"), sig))
}

func TestProofValueRoundTrip(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)
	sig, err := s.Sign([]byte("challenge"))
	require.NoError(t, err)

	pv := EncodeProofValue(sig)
	assert.Equal(t, byte('z'), pv[0])

	decoded, err := DecodeProofValue(pv)
	require.NoError(t, err)
	assert.Equal(t, sig, decoded)

	_, err = DecodeProofValue("m" + pv[1:])
	assert.ErrorIs(t, err, ErrInvalidMultibase)
	_, err = DecodeProofValue("z0OIl")
	assert.ErrorIs(t, err, ErrInvalidMultibase)
}

func TestPublicKeyMultibase(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)

	mb := s.PublicKeyMultibase()
	// Every ed25519-pub multikey starts with z6Mk.
	assert.Equal(t, "z6Mk", mb[:4])

	pub, err := DecodePublicKeyMultibase(mb)
	require.NoError(t, err)
	assert.Equal(t, s.PublicKey(), pub)

	_, err = DecodePublicKeyMultibase(EncodeProofValue([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrInvalidMultibase)
}

func TestJWKRoundTrip(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)

	priv, err := s.PrivateJWK()
	require.NoError(t, err)
	data, err := json.Marshal(priv)
	require.NoError(t, err)

	parsed, err := ParseJWK(data)
	require.NoError(t, err)
	assert.Equal(t, s.PublicKey(), parsed.PublicKey())

	pubJSON, err := s.PublicJWKJSON()
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(pubJSON, &fields))
	assert.Equal(t, "OKP", fields["kty"])
	assert.Equal(t, "Ed25519", fields["crv"])
	assert.Equal(t, KeyID, fields["kid"])
	assert.NotContains(t, fields, "d")
}

func TestParseJWK_RejectsPublicKey(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)
	pubJSON, err := s.PublicJWKJSON()
	require.NoError(t, err)

	_, err = ParseJWK(pubJSON)
	assert.ErrorIs(t, err, ErrNotEd25519)
}

func TestLoadOrGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing-key.jwk")

	_, _, err := LoadOrGenerate(path, false)
	require.Error(t, err)

	s, created, err := LoadOrGenerate(path, true)
	require.NoError(t, err)
	assert.True(t, created)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, created, err := LoadOrGenerate(path, true)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.PublicKey(), again.PublicKey())
}

func TestLoadOrGenerate_CorruptFileNotOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing-key.jwk")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, _, err := LoadOrGenerate(path, true)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{", string(data))
}
