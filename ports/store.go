package ports

import (
	"context"

	"github.com/layer-3/tokengate/core"
)

// NonceStore holds outstanding challenges
type NonceStore interface {
	// Issue creates a fresh nonce bound to the wallet
	Issue(ctx context.Context, walletAddress string) (core.NonceEntry, error)

	// ValidateAndConsume checks the nonce and marks it used in one atomic step.
	// Failures are core.ErrNonceNotFound, core.ErrNonceAlreadyUsed,
	// core.ErrNonceExpired and core.ErrNonceWalletMismatch, checked in that order.
	ValidateAndConsume(ctx context.Context, nonce, walletAddress string) error
}
