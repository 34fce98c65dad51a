package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "talk-hub/errors"
)

const issuer = "talk-hub"

// SessionClaims defines the data stored inside a session token.
type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed session tokens. It keeps no
// per-token state: verification is a pure function of the token and the
// signing key, so tokens survive a process restart as long as the key
// is stable.
type TokenService struct {
	key      []byte
	lifetime time.Duration
}

func NewTokenService(secret string, lifetime time.Duration) TokenService {
	return TokenService{key: []byte(secret), lifetime: lifetime}
}

// Issue creates a signed HS256 token whose subject is the given username,
// expiring after the configured lifetime.
func (s TokenService) Issue(username string) (string, error) {
	now := time.Now()

	claims := &SessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.key)
}

// Verify parses and validates the signature and expiration of a token
// string and returns its subject. Malformed, expired and badly signed
// tokens all collapse to ErrInvalidToken so callers never learn which
// check failed.
func (s TokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", apperrors.ErrInvalidToken
	}

	return claims.Username, nil
}
