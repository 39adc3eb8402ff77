package crypto

import (
	"api/domain"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager signs and verifies session tokens. The user id travels in the
// standard subject claim, nothing custom is added on top.
type JWTManager struct {
	secretKey []byte
	maxAge    time.Duration
}

func NewJWTManager(secretKey string, maxAge time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		maxAge:    maxAge,
	}
}

func (m *JWTManager) Generate(id string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenGenerationError, err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the user id the token
// was issued for.
func (m *JWTManager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidSigningAlg
		}
		return m.secretKey, nil
	}, jwt.WithExpirationRequired())

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidSigningAlg):
		return "", domain.ErrInvalidSigningAlg
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", domain.ErrExpiredToken
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return "", domain.ErrInvalidTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "", domain.ErrCorruptedToken
	default:
		return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenVerificationError, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", domain.ErrCorruptedToken
	}
	return claims.Subject, nil
}
