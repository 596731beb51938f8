package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken = errors.New("auth: malformed access token")
	ErrTokenExpired   = errors.New("auth: access token expired")
)

// AccessTokenClaims is the storefront access token payload. Subject carries the
// account email.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
}

// Email returns the account the token was issued for.
func (c *AccessTokenClaims) Email() string {
	return c.Subject
}

// InspectAccessToken decodes a stored access token without verifying its
// signature; the client never holds the signing key. It rejects tokens that are
// malformed, carry no subject, or expired at now. The storefront remains the
// authority on validity.
func InspectAccessToken(tokenString string, now time.Time) (*AccessTokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMalformedToken
	}

	claims := &AccessTokenClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}
