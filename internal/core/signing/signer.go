// Package signing holds the service's Ed25519 identity key.
//
// The key is stored as a private JWK on disk. Its public half is published in
// the service DID document as verification method #key-1 and attached to PDS
// registrations as publicKeyJwk.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/mr-tron/base58"
)

// KeyID is the fragment of the verification method the key is published under.
const KeyID = "key-1"

// ProofType is the Data Integrity suite used for challenge proofs.
const ProofType = "Ed25519Signature2020"

// ed25519-pub multicodec prefix, varint encoded.
var ed25519PubPrefix = []byte{0xed, 0x01}

var (
	ErrNotEd25519       = errors.New("signing key is not an Ed25519 private key")
	ErrInvalidMultibase = errors.New("invalid multibase value")
)

// Signer signs and verifies byte strings with an asymmetric key.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	Verify(publicKey, msg, sig []byte) bool
	PublicKey() []byte
}

// Ed25519Signer is a Signer backed by an in-memory Ed25519 key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// Generate creates a fresh Ed25519 signer.
func Generate() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return &Ed25519Signer{priv: priv}, nil
}

// NewEd25519Signer wraps an existing private key.
func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrNotEd25519
	}
	return &Ed25519Signer{priv: priv}, nil
}

func (s *Ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

func (s *Ed25519Signer) Verify(publicKey, msg, sig []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), msg, sig)
}

func (s *Ed25519Signer) PublicKey() []byte {
	return []byte(s.priv.Public().(ed25519.PublicKey))
}

// PublicKeyMultibase encodes the public key the way Ed25519VerificationKey2020
// expects it: multicodec-prefixed and base58btc with the "z" multibase tag.
func (s *Ed25519Signer) PublicKeyMultibase() string {
	buf := make([]byte, 0, len(ed25519PubPrefix)+ed25519.PublicKeySize)
	buf = append(buf, ed25519PubPrefix...)
	buf = append(buf, s.PublicKey()...)
	return "z" + base58.Encode(buf)
}

// PrivateJWK returns the key as a private JWK carrying kid, alg and use.
func (s *Ed25519Signer) PrivateJWK() (jwk.Key, error) {
	key, err := jwk.FromRaw(s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from private key: %w", err)
	}
	if err := setKeyParams(key); err != nil {
		return nil, err
	}
	return key, nil
}

// PublicJWK returns the public half as a JWK.
func (s *Ed25519Signer) PublicJWK() (jwk.Key, error) {
	priv, err := s.PrivateJWK()
	if err != nil {
		return nil, err
	}
	pub, err := priv.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	return pub, nil
}

// PublicJWKJSON is PublicJWK serialized, as attached to PDS registrations.
func (s *Ed25519Signer) PublicJWKJSON() (json.RawMessage, error) {
	pub, err := s.PublicJWK()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JWK: %w", err)
	}
	return data, nil
}

func setKeyParams(key jwk.Key) error {
	if err := key.Set(jwk.KeyIDKey, KeyID); err != nil {
		return fmt.Errorf("failed to set kid: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.EdDSA); err != nil {
		return fmt.Errorf("failed to set alg: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return fmt.Errorf("failed to set use: %w", err)
	}
	return nil
}

// ParseJWK builds a signer from a private Ed25519 JWK.
func ParseJWK(data []byte) (*Ed25519Signer, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWK: %w", err)
	}

	var priv ed25519.PrivateKey
	if err := key.Raw(&priv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEd25519, err)
	}
	return NewEd25519Signer(priv)
}

// LoadJWKFile reads a private JWK from path.
func LoadJWKFile(path string) (*Ed25519Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return ParseJWK(data)
}

// LoadOrGenerate loads the key at path. When the file does not exist and
// generate is set, a new key is created and written there with mode 0600.
func LoadOrGenerate(path string, generate bool) (s *Ed25519Signer, created bool, err error) {
	s, err = LoadJWKFile(path)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || !generate {
		return nil, false, err
	}

	s, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := s.WriteJWKFile(path); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// WriteJWKFile writes the private JWK to path with mode 0600.
func (s *Ed25519Signer) WriteJWKFile(path string) error {
	key, err := s.PrivateJWK()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JWK: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// EncodeProofValue renders a signature as a base58btc multibase string.
func EncodeProofValue(sig []byte) string {
	return "z" + base58.Encode(sig)
}

// DecodeProofValue is the inverse of EncodeProofValue.
func DecodeProofValue(v string) ([]byte, error) {
	if len(v) < 2 || v[0] != 'z' {
		return nil, ErrInvalidMultibase
	}
	b, err := base58.Decode(v[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMultibase, err)
	}
	return b, nil
}

// DecodePublicKeyMultibase returns the raw Ed25519 key from a
// publicKeyMultibase value.
func DecodePublicKeyMultibase(v string) ([]byte, error) {
	b, err := DecodeProofValue(v)
	if err != nil {
		return nil, err
	}
	if len(b) != len(ed25519PubPrefix)+ed25519.PublicKeySize || b[0] != ed25519PubPrefix[0] || b[1] != ed25519PubPrefix[1] {
		return nil, ErrInvalidMultibase
	}
	return b[len(ed25519PubPrefix):], nil
}
