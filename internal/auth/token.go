// Package auth issues and validates the bearer tokens used by the device
// forwarder (SMS ingestion) and the admin console. Tokens are HS256 JWTs
// signed with the shared secret from config.
package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	errors "github.com/frahmantamala/payment-verification/internal"
)

const (
	ScopeIngest = "ingest"
	ScopeAdmin  = "admin"
)

type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{
		secret:   []byte(secret),
		duration: duration,
	}
}

// Mint creates a token for a device or admin subject with the given scope.
func (m *TokenManager) Mint(subject, scope string) (string, error) {
	if scope != ScopeIngest && scope != ScopeAdmin {
		return "", fmt.Errorf("unknown scope %q", scope)
	}

	now := time.Now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a token, returning its claims. The scope
// check belongs to the caller; admin tokens satisfy any scope.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}
	if !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}

// Allows reports whether the claims satisfy the required scope.
func (c *Claims) Allows(scope string) bool {
	if c.Scope == ScopeAdmin {
		return true
	}
	return c.Scope == scope
}
