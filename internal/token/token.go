// Package token issues and verifies the signed bearer credentials used by
// patient and physician clients.
//
// Tokens are stateless: validity is purely cryptographic. They carry the
// principal's email (and, for physicians, the principal id) plus the issuance
// time. No expiry claim is set and none is enforced: possession of a token is
// authorization for that principal, and there is no refresh or revocation
// mechanism. Clients obtain a new token by logging in again.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Predefined token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims represents the claims embedded in a bearer token.
type Claims struct {
	jwt.RegisteredClaims

	// Email is the principal's email address.
	Email string `json:"email"`

	// PrincipalID is set for physician tokens only.
	PrincipalID string `json:"id,omitempty"`
}

// Service signs and verifies bearer tokens with a server-held symmetric key.
type Service struct {
	signingKey []byte
}

// NewService creates a token service. The signing key comes from the secrets
// material loaded at startup.
func NewService(signingKey []byte) *Service {
	return &Service{signingKey: signingKey}
}

// Issue creates a signed token for the given principal email. principalID may
// be empty; it is included for physicians so physician-scoped endpoints can
// resolve the roster without an email lookup.
func (s *Service) Issue(email, principalID string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		Email:       email,
		PrincipalID: principalID,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Verify checks the token signature and returns the embedded claims.
// A tampered or malformed token fails with ErrInvalidToken.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Email == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
