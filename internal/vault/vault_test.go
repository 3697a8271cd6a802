package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestCipher_SealOpen(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	sealed, err := c.Seal("access-token-123")
	require.NoError(t, err)

	ivHex, body, ok := strings.Cut(sealed, ":")
	require.True(t, ok, "value should be ivHex:base64")
	iv, err := hex.DecodeString(ivHex)
	require.NoError(t, err)
	assert.Len(t, iv, 12)
	_, err = base64.StdEncoding.DecodeString(body)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-token-123")

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-token-123", opened)
}

func TestCipher_FreshNonceEachValue(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	a, err := c.Seal("same")
	require.NoError(t, err)
	b, err := c.Seal("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipher_EmptyValue(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	sealed, err := c.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := c.Open("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestCipher_RejectsTampering(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	sealed, err := c.Seal("refresh-token")
	require.NoError(t, err)

	ivHex, body, _ := strings.Cut(sealed, ":")
	raw, _ := base64.StdEncoding.DecodeString(body)
	raw[0] ^= 0xff
	tampered := ivHex + ":" + base64.StdEncoding.EncodeToString(raw)

	_, err = c.Open(tampered)
	assert.Error(t, err)
}

func TestCipher_WrongKey(t *testing.T) {
	a, err := NewCipher(testKey(t))
	require.NoError(t, err)
	b, err := NewCipher(testKey(t))
	require.NoError(t, err)

	sealed, err := a.Seal("secret")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.Error(t, err)
}

func TestCipher_MalformedValues(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	for _, v := range []string{"no-separator", "zz:abc", "00112233445566778899aabb:!!!", "0011:AAAA"} {
		_, err := c.Open(v)
		assert.ErrorIs(t, err, ErrMalformedValue, v)
	}
}

func TestNewCipher_KeyLength(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	key := testKey(t)

	fromB64, err := ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, fromB64)

	fromHex, err := ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, fromHex)

	_, err = ParseKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSecretStore_PutGet(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)
	backend := NewMemoryBackend()
	store := NewSecretStore(c, backend)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "registration:r1:access", []byte("tok")))

	raw, err := backend.Load(ctx, "registration:r1:access")
	require.NoError(t, err)
	assert.NotContains(t, raw, "tok")

	got, err := store.Get(ctx, "registration:r1:access")
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), got)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}
