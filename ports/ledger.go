package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceOracle reads token balances from the ledger
type BalanceOracle interface {
	// GetBalance returns the quantity of mint held by owner.
	// Fails with core.ErrLedgerUnavailable or core.ErrMintNotFound.
	GetBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error)

	// Endpoint names the ledger RPC endpoint in use
	Endpoint() string
}
