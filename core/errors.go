package core

import "errors"

var (
	// Client errors
	ErrBadRequest = errors.New("bad request")

	// Nonce errors, all surfaced as unauthorized
	ErrNonceNotFound       = errors.New("nonce not found")
	ErrNonceAlreadyUsed    = errors.New("nonce already used")
	ErrNonceExpired        = errors.New("nonce expired")
	ErrNonceWalletMismatch = errors.New("nonce wallet mismatch")

	ErrBadSignature = errors.New("bad signature")

	ErrNoUserMessage = errors.New("no user message provided")

	// Server errors
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrMintNotFound      = errors.New("mint not found")
	ErrMissingConfig     = errors.New("missing configuration")
	ErrAgentUnavailable  = errors.New("agent unavailable")

	// Session token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// IsNonceError reports whether err is one of the nonce validation failures.
func IsNonceError(err error) bool {
	return errors.Is(err, ErrNonceNotFound) ||
		errors.Is(err, ErrNonceAlreadyUsed) ||
		errors.Is(err, ErrNonceExpired) ||
		errors.Is(err, ErrNonceWalletMismatch)
}

// IsUnauthorized reports whether err denies the caller for failing to prove ownership.
func IsUnauthorized(err error) bool {
	return IsNonceError(err) || errors.Is(err, ErrBadSignature)
}
