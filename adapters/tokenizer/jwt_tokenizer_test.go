package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/tokengate/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func newSession(ttl time.Duration) *core.Session {
	now := time.Now().Truncate(time.Second)
	return &core.Session{
		ID:            uuid.NewString(),
		WalletAddress: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Balance:       decimal.RequireFromString("12.5"),
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t), "tokengate")
	session := newSession(3 * time.Minute)

	token, err := tk.SessionToToken(session)
	require.NoError(t, err)

	got, err := tk.TokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.WalletAddress, got.WalletAddress)
	assert.True(t, session.Balance.Equal(got.Balance))
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
	assert.True(t, session.IssuedAt.Equal(got.IssuedAt))
}

func TestTokenToSessionRejectsExpired(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t), "tokengate")
	session := newSession(-time.Minute)

	token, err := tk.SessionToToken(session)
	require.NoError(t, err)

	_, err = tk.TokenToSession(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestTokenToSessionRejectsForeignKey(t *testing.T) {
	issuer := NewJWTTokenizer(newKey(t), "tokengate")
	other := NewJWTTokenizer(newKey(t), "tokengate")

	token, err := issuer.SessionToToken(newSession(time.Minute))
	require.NoError(t, err)

	_, err = other.TokenToSession(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestTokenToSessionRejectsWrongAudienceAndAlgorithm(t *testing.T) {
	key := newKey(t)
	tk := NewJWTTokenizer(key, "tokengate")

	wrongAud := jwt.NewWithClaims(jwt.SigningMethodES256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tokengate",
			Audience:  jwt.ClaimStrings{"session:access"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Balance: "1",
	})
	signed, err := wrongAud.SignedString(key)
	require.NoError(t, err)
	_, err = tk.TokenToSession(signed)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tokengate",
			Audience:  jwt.ClaimStrings{AudienceSession},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Balance: "1",
	})
	signed, err = hmac.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tk.TokenToSession(signed)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = tk.TokenToSession("not-a-jwt")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
