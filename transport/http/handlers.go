package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/service"
	"github.com/shopspring/decimal"
)

// AuthHandlers contains HTTP handlers for the gate endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type walletRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type verifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Nonce         string `json:"nonce"`
	Challenge     string `json:"challenge"` // older clients send the nonce under this name
	Message       string `json:"message"`
	Signature     string `json:"signature"`
}

// NonceResponse is returned by the challenge endpoint
type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	Challenge string    `json:"challenge"` // same value as Nonce
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyResponse is returned once the wallet proved ownership
type VerifyResponse struct {
	Verified         bool        `json:"verified"`
	HasAccess        bool        `json:"hasAccess"`
	Balance          json.Number `json:"balance"`
	SessionToken     string      `json:"sessionToken,omitempty"`
	SessionExpiresAt *time.Time  `json:"sessionExpiresAt,omitempty"`
}

// AccessCheckResponse is returned by the direct balance check
type AccessCheckResponse struct {
	HasAccess bool        `json:"hasAccess"`
	Balance   json.Number `json:"balance"`
	RPC       string      `json:"rpc"`
	Mint      string      `json:"mint"`
}

// SessionResponse describes the caller's granted session
type SessionResponse struct {
	WalletAddress string      `json:"walletAddress"`
	Balance       json.Number `json:"balance"`
	ExpiresAt     time.Time   `json:"expiresAt"`
}

// Nonce issues a challenge for a wallet
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req walletRequest
	// An unreadable body is treated as an empty one
	_ = c.ShouldBindJSON(&req)

	challenge, err := h.authService.CreateChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		if errors.Is(err, core.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing walletAddress"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, NonceResponse{
		Nonce:     challenge.Nonce,
		Challenge: challenge.Nonce,
		Message:   challenge.Message,
		ExpiresAt: challenge.ExpiresAt,
	})
}

// Verify checks a signed challenge and decides access
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req verifyRequest
	_ = c.ShouldBindJSON(&req)

	nonce := req.Nonce
	if nonce == "" {
		nonce = req.Challenge
	}

	res, err := h.authService.Verify(c.Request.Context(), service.VerifyRequest{
		WalletAddress: req.WalletAddress,
		Nonce:         nonce,
		Message:       req.Message,
		Signature:     req.Signature,
	})
	if err != nil {
		status, msg := errorResponse(err)
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	resp := VerifyResponse{
		Verified:  res.Decision.Verified,
		HasAccess: res.Decision.HasAccess,
		Balance:   number(res.Decision.Balance),
	}
	if res.Session != nil {
		resp.SessionToken = res.SessionToken
		resp.SessionExpiresAt = &res.Session.ExpiresAt
	}

	c.JSON(http.StatusOK, resp)
}

// CheckAccess reports balance and access for a wallet without authentication
func (h *AuthHandlers) CheckAccess(c *gin.Context) {
	var req walletRequest
	_ = c.ShouldBindJSON(&req)

	res, err := h.authService.CheckAccess(c.Request.Context(), req.WalletAddress)
	if err != nil {
		if errors.Is(err, core.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing walletAddress"})
			return
		}
		_ = c.Error(err)
		_, msg := errorResponse(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": msg,
			"rpc":   h.authService.RPC(),
			"mint":  h.authService.Mint(),
		})
		return
	}

	c.JSON(http.StatusOK, AccessCheckResponse{
		HasAccess: res.HasAccess,
		Balance:   number(res.Balance),
		RPC:       res.RPC,
		Mint:      res.Mint,
	})
}

// Session returns the session attached by SessionMiddleware
func (h *AuthHandlers) Session(c *gin.Context) {
	session, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		WalletAddress: session.WalletAddress,
		Balance:       number(session.Balance),
		ExpiresAt:     session.ExpiresAt,
	})
}

// Health answers liveness probes
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// errorResponse maps a service error to exactly one status and message
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrBadRequest):
		return http.StatusBadRequest, "Missing fields"
	case errors.Is(err, core.ErrNonceNotFound):
		return http.StatusUnauthorized, "Invalid nonce"
	case errors.Is(err, core.ErrNonceAlreadyUsed):
		return http.StatusUnauthorized, "Nonce already used"
	case errors.Is(err, core.ErrNonceExpired):
		return http.StatusUnauthorized, "Nonce expired"
	case errors.Is(err, core.ErrNonceWalletMismatch):
		return http.StatusUnauthorized, "Nonce wallet mismatch"
	case errors.Is(err, core.ErrBadSignature):
		return http.StatusUnauthorized, "Bad signature"
	case errors.Is(err, core.ErrMissingConfig):
		return http.StatusInternalServerError, "Missing TOKEN_MINT env"
	case errors.Is(err, core.ErrMintNotFound):
		return http.StatusInternalServerError, "Mint not found on RPC"
	case errors.Is(err, core.ErrLedgerUnavailable):
		return http.StatusInternalServerError, "Ledger unavailable"
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

// number renders a decimal as a JSON number without float rounding
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
