package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/ports"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

const (
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"

	DefaultTimeout = 10 * time.Second
	DefaultRetries = 2
	DefaultBackoff = 200 * time.Millisecond
)

// Option configures a SolanaOracle
type Option func(*SolanaOracle)

// WithCommitment sets the finality level of every query
func WithCommitment(commitment string) Option {
	return func(o *SolanaOracle) { o.commitment = commitment }
}

// WithTimeout bounds each RPC attempt
func WithTimeout(d time.Duration) Option {
	return func(o *SolanaOracle) { o.timeout = d }
}

// WithRetries sets how many times a transient failure is retried
func WithRetries(n uint64, backoff time.Duration) Option {
	return func(o *SolanaOracle) {
		o.retries = n
		o.backoff = backoff
	}
}

// WithHTTPClient replaces the HTTP client used for RPC calls
func WithHTTPClient(c *http.Client) Option {
	return func(o *SolanaOracle) { o.httpClient = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *SolanaOracle) { o.logger = l }
}

// SolanaOracle implements the BalanceOracle interface over Solana JSON-RPC
type SolanaOracle struct {
	client     *rpc.Client
	httpClient *http.Client
	endpoint   string
	commitment string
	timeout    time.Duration
	retries    uint64
	backoff    time.Duration
	logger     *slog.Logger
}

// NewSolanaOracle creates an oracle bound to the RPC endpoint
func NewSolanaOracle(ctx context.Context, endpoint string, opts ...Option) (*SolanaOracle, error) {
	o := &SolanaOracle{
		endpoint:   endpoint,
		commitment: CommitmentConfirmed,
		timeout:    DefaultTimeout,
		retries:    DefaultRetries,
		backoff:    DefaultBackoff,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.commitment != CommitmentConfirmed && o.commitment != CommitmentFinalized {
		return nil, fmt.Errorf("unsupported commitment %q", o.commitment)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}

	client, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(o.httpClient))
	if err != nil {
		return nil, fmt.Errorf("connecting to ledger RPC: %w", err)
	}
	o.client = client

	return o, nil
}

var _ ports.BalanceOracle = (*SolanaOracle)(nil)

// Endpoint returns the RPC URL
func (o *SolanaOracle) Endpoint() string {
	return o.endpoint
}

// Close shuts down the RPC client
func (o *SolanaOracle) Close() {
	o.client.Close()
}

// GetBalance sums the owner's token accounts for mint.
// The mint must exist on the ledger, otherwise core.ErrMintNotFound is returned.
func (o *SolanaOracle) GetBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error) {
	if err := o.checkMint(ctx, mint); err != nil {
		return decimal.Zero, err
	}

	var res tokenAccountsResult
	err := o.call(ctx, &res, "getTokenAccountsByOwner",
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed", "commitment": o.commitment},
	)
	if err != nil {
		return decimal.Zero, err
	}
	if res.Value == nil {
		return decimal.Zero, fmt.Errorf("%w: token accounts response has no value", core.ErrLedgerUnavailable)
	}

	total := decimal.Zero
	for _, acc := range *res.Value {
		qty, err := acc.quantity(mint)
		if err != nil {
			o.logger.WarnContext(ctx, "ignoring token account", "account", acc.Pubkey, "mint", mint, "error", err)
			continue
		}
		total = total.Add(qty)
	}

	return total, nil
}

func (o *SolanaOracle) checkMint(ctx context.Context, mint string) error {
	var res accountInfoResult
	err := o.call(ctx, &res, "getAccountInfo",
		mint,
		map[string]any{
			"encoding":   "base64",
			"commitment": o.commitment,
			"dataSlice":  map[string]int{"offset": 0, "length": 0},
		},
	)
	if err != nil {
		return err
	}
	if res.Value == nil {
		return fmt.Errorf("%w: mint=%s rpc=%s", core.ErrMintNotFound, mint, o.endpoint)
	}
	return nil
}

// call performs one RPC method with per-attempt timeouts and bounded retries,
// then decodes the result strictly into out.
func (o *SolanaOracle) call(ctx context.Context, out any, method string, params ...any) error {
	var raw json.RawMessage

	backoff := retry.WithMaxRetries(o.retries, retry.NewExponential(o.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		err := o.client.CallContext(attemptCtx, &raw, method, params...)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			o.logger.DebugContext(ctx, "retrying ledger call", "method", method, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrLedgerUnavailable, method, err)
	}

	if err := decodeStrict(raw, out); err != nil {
		return fmt.Errorf("%w: %s: malformed response: %v", core.ErrLedgerUnavailable, method, err)
	}
	return nil
}

// isTransient reports whether a failed call is worth repeating
func isTransient(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) || errors.Is(err, rpc.ErrNoResult) {
		return false
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}

	return true
}
