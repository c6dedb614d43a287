package ports

// SignatureVerifier validates detached signatures
type SignatureVerifier interface {
	// Verify reports whether signature over message was produced by the key
	// behind walletPublicKey. Malformed input yields false.
	Verify(message, signature, walletPublicKey []byte) bool

	// VerifyEncoded decodes the wallet address and base64 signature before verifying.
	VerifyEncoded(message []byte, signatureB64, walletAddress string) bool
}
