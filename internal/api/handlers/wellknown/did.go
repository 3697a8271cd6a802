// Package wellknown serves documents under /.well-known.
package wellknown

import (
	"fmt"
	"net/http"

	"github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"

	"Fedgate/internal/api/handlers"
	"Fedgate/internal/core/signing"
)

const verificationKeyType = "Ed25519VerificationKey2020"

var didContexts = []string{
	"https://www.w3.org/ns/did/v1",
	"https://w3id.org/security/suites/ed25519-2020/v1",
}

// KeySource provides the multibase public key; *signing.Ed25519Signer implements it.
type KeySource interface {
	PublicKeyMultibase() string
}

// DIDDocument is a did:web document: the atproto document shape plus the
// JSON-LD context and verification relationships challenge verifiers expect.
type DIDDocument struct {
	Context []string `json:"@context"`
	identity.DIDDocument
	Authentication  []string `json:"authentication"`
	AssertionMethod []string `json:"assertionMethod"`
}

// NewDIDDocument builds the service DID document publishing the signing key
// as #key-1 and serviceURL as the gateway endpoint.
func NewDIDDocument(serviceDID, serviceURL string, keys KeySource) (*DIDDocument, error) {
	did, err := syntax.ParseDID(serviceDID)
	if err != nil {
		return nil, fmt.Errorf("invalid service DID: %w", err)
	}
	if did.Method() != "web" {
		return nil, fmt.Errorf("service DID must be did:web, got did:%s", did.Method())
	}

	keyID := did.String() + "#" + signing.KeyID
	return &DIDDocument{
		Context: didContexts,
		DIDDocument: identity.DIDDocument{
			DID: did,
			VerificationMethod: []identity.DocVerificationMethod{{
				ID:                 keyID,
				Type:               verificationKeyType,
				Controller:         did.String(),
				PublicKeyMultibase: keys.PublicKeyMultibase(),
			}},
			Service: []identity.DocService{{
				ID:              did.String() + "#fep",
				Type:            "CredentialGateway",
				ServiceEndpoint: serviceURL,
			}},
		},
		Authentication:  []string{keyID},
		AssertionMethod: []string{keyID},
	}, nil
}

// DIDHandler serves a prebuilt document; the key does not change while the process runs.
type DIDHandler struct {
	doc *DIDDocument
}

func NewDIDHandler(doc *DIDDocument) *DIDHandler {
	return &DIDHandler{doc: doc}
}

// HandleDIDDocument serves the service DID document
// GET /.well-known/did.json
func (h *DIDHandler) HandleDIDDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	handlers.WriteJSON(w, http.StatusOK, h.doc)
}
