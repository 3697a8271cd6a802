package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"Fedgate/internal/core/signing"
)

// genkey generates the Ed25519 service key used to sign PDS challenges.
// The public half is published as #key-1 in /.well-known/did.json.
//
// Usage:
//
//	go run ./cmd/genkey
//	go run ./cmd/genkey --save --out config/signing-key.jwk
func main() {
	save := flag.Bool("save", false, "write the private key to --out instead of only printing it")
	out := flag.String("out", "config/signing-key.jwk", "path for the private JWK when --save is set")
	flag.Parse()

	signer, err := signing.Generate()
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	pub, err := signer.PublicJWK()
	if err != nil {
		log.Fatalf("Failed to derive public JWK: %v", err)
	}
	pubJSON, err := json.MarshalIndent(pub, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal public JWK: %v", err)
	}

	fmt.Println("Public key (JWK):")
	fmt.Println(string(pubJSON))
	fmt.Printf("\npublicKeyMultibase: %s\n", signer.PublicKeyMultibase())

	if !*save {
		priv, err := signer.PrivateJWK()
		if err != nil {
			log.Fatalf("Failed to build private JWK: %v", err)
		}
		privJSON, err := json.MarshalIndent(priv, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal private JWK: %v", err)
		}
		fmt.Println("\nPrivate key (JWK), store it at SIGNING_KEY_PATH and keep it secret:")
		fmt.Println(string(privJSON))
		return
	}

	if err := signer.WriteJWKFile(*out); err != nil {
		log.Fatalf("Failed to write key file: %v", err)
	}
	fmt.Printf("\nPrivate key saved to %s (mode 0600)\n", *out)
}
