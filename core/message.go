package core

import "fmt"

const messageTemplate = "Sign in to the token-gated research agent.\n\nWallet: %s\nNonce: %s\n\nThis request will not trigger a blockchain transaction or cost any fees."

// CanonicalMessage renders the only message a wallet may sign for a challenge.
// It depends on server-issued data alone.
func CanonicalMessage(walletAddress, nonce string) string {
	return fmt.Sprintf(messageTemplate, walletAddress, nonce)
}
