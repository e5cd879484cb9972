package commands

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

type KeygenCmd struct {
	PrivateKey string `help:"where to write the private key" default:"casekeeper-signing.pem"`
	PublicKey  string `help:"where to write the public key for the server" default:"casekeeper-public.pem"`
}

func (k *KeygenCmd) Run(ctx context.Context) error {
	// Generate ECDSA P-256 keypair
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	privateKeyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	publicKeyDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}

	if err := os.WriteFile(k.PrivateKey, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateKeyDER}), 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(k.PublicKey, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyDER}), 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	// Base58-encoded SHA256 of public key DER
	hash := sha256.Sum256(publicKeyDER)
	fingerprint := base58.Encode(hash[:])

	log.Info().Str("private_key", k.PrivateKey).Str("public_key", k.PublicKey).Msg("Wrote key pair")
	fmt.Printf("Fingerprint: %s\n", fingerprint)
	return nil
}
