package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the balance observed at grant time
type SessionClaims struct {
	jwt.RegisteredClaims
	Balance string `json:"bal"`
}
