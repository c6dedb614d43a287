package verifier

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/layer-3/tokengate/ports"
	"github.com/mr-tron/base58"
)

// Ed25519Verifier implements the SignatureVerifier interface for base58 wallet keys
type Ed25519Verifier struct{}

// NewEd25519Verifier creates a new verifier
func NewEd25519Verifier() ports.SignatureVerifier {
	return Ed25519Verifier{}
}

// Verify checks a detached signature over the exact message bytes
func (Ed25519Verifier) Verify(message, signature, walletPublicKey []byte) bool {
	if len(walletPublicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(walletPublicKey), message, signature)
}

// VerifyEncoded decodes a base58 wallet address and a base64 signature, then verifies
func (v Ed25519Verifier) VerifyEncoded(message []byte, signatureB64, walletAddress string) bool {
	pub, err := DecodeWalletAddress(walletAddress)
	if err != nil {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	return v.Verify(message, sig, pub)
}

// DecodeWalletAddress returns the raw public key behind a base58 wallet address
func DecodeWalletAddress(walletAddress string) ([]byte, error) {
	pub, err := base58.Decode(walletAddress)
	if err != nil {
		return nil, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, errInvalidKeySize
	}
	return pub, nil
}

// EncodeWalletAddress renders a public key as a base58 wallet address
func EncodeWalletAddress(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}
