package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	// ErrInvalidKey is returned when the encryption key is not 32 bytes
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")

	// ErrMalformedValue is returned when a stored value is not in ivHex:base64ciphertext form
	ErrMalformedValue = errors.New("malformed encrypted value")
)

// Cipher seals and opens token values with AES-256-GCM.
//
// Value format: hex(nonce) ":" base64(ciphertext || tag)
// - nonce: 12 random bytes, fresh for every value
// - tag: 16 bytes (GCM authentication tag)
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a raw 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: gcm}, nil
}

// ParseKey decodes a key given as base64 (standard or URL alphabet) or as 64 hex characters.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if len(encoded) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(encoded); err == nil {
			return key, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil {
			if len(key) != KeySize {
				return nil, ErrInvalidKey
			}
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: not base64 or hex", ErrInvalidKey)
}

// Seal encrypts plaintext. Empty input stays empty so optional token fields
// round-trip without producing ciphertext for nothing.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	ivHex, body, ok := strings.Cut(value, ":")
	if !ok {
		return "", ErrMalformedValue
	}

	nonce, err := hex.DecodeString(ivHex)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad iv", ErrMalformedValue)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrMalformedValue)
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}

	return string(plaintext), nil
}
