package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NonceSize is the number of random bytes behind every nonce (256 bits).
const NonceSize = 32

// NonceEntry is an outstanding challenge held by a nonce store
type NonceEntry struct {
	Nonce         string    // Hex-encoded random token, unique key in the store
	WalletAddress string    // Base58 wallet public key the challenge is bound to
	ExpiresAt     time.Time // After this instant the entry is invalid
	Used          bool      // Flipped exactly once, on successful consumption
}

// Challenge is handed to the client to be signed
type Challenge struct {
	Nonce         string
	WalletAddress string
	Message       string // Canonical message the wallet must sign verbatim
	ExpiresAt     time.Time
}

// AccessDecision is the outcome of a verification attempt that proved wallet ownership
type AccessDecision struct {
	Verified  bool
	HasAccess bool
	Balance   decimal.Decimal
	Threshold decimal.Decimal
	DecidedAt time.Time
}

// Session represents a granted, time-limited access window
type Session struct {
	ID            string          // Unique session identifier
	WalletAddress string          // Wallet that proved ownership
	Balance       decimal.Decimal // Balance observed when access was granted
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// NewNonce returns NonceSize bytes from crypto/rand, hex encoded.
func NewNonce() (string, error) {
	b := make([]byte, NonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
