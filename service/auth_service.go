package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/ports"
	"github.com/shopspring/decimal"
)

// DefaultSessionTTL matches the client-side verification window
const DefaultSessionTTL = 3 * time.Minute

// Config holds the access policy of the service
type Config struct {
	Mint       string          // Token identifier whose balance gates access
	Threshold  decimal.Decimal // Minimum balance, defaults to 1
	SessionTTL time.Duration   // Lifetime of a granted session
	Logger     *slog.Logger
	Now        func() time.Time
}

// AuthService handles the challenge-response protocol and access decisions
type AuthService struct {
	store     ports.NonceStore
	verifier  ports.SignatureVerifier
	oracle    ports.BalanceOracle
	tokenizer ports.SessionTokenizer
	eventPub  ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	mint       string
	threshold  decimal.Decimal
	sessionTTL time.Duration
}

// VerifyRequest carries a signed challenge
type VerifyRequest struct {
	WalletAddress string
	Nonce         string
	Message       string
	Signature     string // base64
}

// VerifyResult is returned once wallet ownership is proven
type VerifyResult struct {
	Decision     core.AccessDecision
	Session      *core.Session // nil unless access was granted
	SessionToken string
}

// AccessCheck is the unauthenticated balance read
type AccessCheck struct {
	HasAccess bool
	Balance   decimal.Decimal
	RPC       string
	Mint      string
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store ports.NonceStore,
	verifier ports.SignatureVerifier,
	oracle ports.BalanceOracle,
	tokenizer ports.SessionTokenizer,
	eventPub ports.EventPublisher,
	cfg Config,
) *AuthService {
	s := &AuthService{
		store:      store,
		verifier:   verifier,
		oracle:     oracle,
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		logger:     cfg.Logger,
		now:        cfg.Now,
		mint:       strings.TrimSpace(cfg.Mint),
		threshold:  cfg.Threshold,
		sessionTTL: cfg.SessionTTL,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.threshold.IsZero() {
		s.threshold = decimal.NewFromInt(1)
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}

	return s
}

// Mint returns the gating token identifier
func (s *AuthService) Mint() string {
	return s.mint
}

// RPC returns the ledger endpoint in use
func (s *AuthService) RPC() string {
	return s.oracle.Endpoint()
}

// CreateChallenge issues a single-use nonce bound to the wallet
func (s *AuthService) CreateChallenge(ctx context.Context, walletAddress string) (*core.Challenge, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return nil, fmt.Errorf("%w: missing wallet address", core.ErrBadRequest)
	}

	entry, err := s.store.Issue(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to issue nonce: %w", err)
	}

	return &core.Challenge{
		Nonce:         entry.Nonce,
		WalletAddress: entry.WalletAddress,
		Message:       core.CanonicalMessage(entry.WalletAddress, entry.Nonce),
		ExpiresAt:     entry.ExpiresAt,
	}, nil
}

// Verify runs the access decision: nonce, then signature, then balance.
// The balance is never queried before ownership is proven, and the nonce is
// burnt as soon as it validates, whatever happens afterwards.
func (s *AuthService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	wallet := strings.TrimSpace(req.WalletAddress)
	nonce := strings.TrimSpace(req.Nonce)
	signature := strings.TrimSpace(req.Signature)

	if wallet == "" || nonce == "" || req.Message == "" || signature == "" {
		return nil, fmt.Errorf("%w: missing fields", core.ErrBadRequest)
	}
	if s.mint == "" {
		return nil, fmt.Errorf("%w: token mint", core.ErrMissingConfig)
	}

	log := s.logger.With("wallet", wallet)

	if err := s.store.ValidateAndConsume(ctx, nonce, wallet); err != nil {
		if core.IsNonceError(err) {
			log.InfoContext(ctx, "nonce rejected", "reason", err)
			return nil, err
		}
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}

	// Both checks always run so a foreign message and a bad signature cost the same
	validSig := s.verifier.VerifyEncoded([]byte(req.Message), signature, wallet)
	canonical := req.Message == core.CanonicalMessage(wallet, nonce)
	if !validSig || !canonical {
		log.InfoContext(ctx, "signature rejected")
		return nil, core.ErrBadSignature
	}

	balance, err := s.oracle.GetBalance(ctx, wallet, s.mint)
	if err != nil {
		log.ErrorContext(ctx, "balance query failed", "mint", s.mint, "error", err)
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}

	decision := s.decide(balance)
	result := &VerifyResult{Decision: decision}

	if decision.HasAccess {
		session := &core.Session{
			ID:            uuid.NewString(),
			WalletAddress: wallet,
			Balance:       balance,
			IssuedAt:      decision.DecidedAt,
			ExpiresAt:     decision.DecidedAt.Add(s.sessionTTL),
		}

		token, err := s.tokenizer.SessionToToken(session)
		if err != nil {
			return nil, fmt.Errorf("failed to create session token: %w", err)
		}

		result.Session = session
		result.SessionToken = token
	}

	log.InfoContext(ctx, "access decided", "has_access", decision.HasAccess, "balance", balance.String())

	// The decision stands even if nobody hears about it
	if err := s.eventPub.PublishDecision(ctx, wallet, decision); err != nil {
		log.WarnContext(ctx, "failed to publish decision event", "error", err)
	}

	return result, nil
}

// CheckAccess reads the wallet balance without proof of ownership
func (s *AuthService) CheckAccess(ctx context.Context, walletAddress string) (*AccessCheck, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return nil, fmt.Errorf("%w: missing wallet address", core.ErrBadRequest)
	}
	if s.mint == "" {
		return nil, fmt.Errorf("%w: token mint", core.ErrMissingConfig)
	}

	balance, err := s.oracle.GetBalance(ctx, walletAddress, s.mint)
	if err != nil {
		s.logger.ErrorContext(ctx, "access check failed", "wallet", walletAddress, "mint", s.mint, "error", err)
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}

	return &AccessCheck{
		HasAccess: s.decide(balance).HasAccess,
		Balance:   balance,
		RPC:       s.oracle.Endpoint(),
		Mint:      s.mint,
	}, nil
}

// ValidateSession parses a session token issued by Verify
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	// Check if the token has expired
	if s.now().After(session.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	return session, nil
}

func (s *AuthService) decide(balance decimal.Decimal) core.AccessDecision {
	return core.AccessDecision{
		Verified:  true,
		HasAccess: balance.GreaterThanOrEqual(s.threshold),
		Balance:   balance,
		Threshold: s.threshold,
		DecidedAt: s.now(),
	}
}
