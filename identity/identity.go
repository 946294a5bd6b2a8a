// Package identity resolves the caller identity used for rate-limit
// accounting.
//
// Authentication proper happens upstream; this package only extracts a
// stable identifier from whatever credential reached this layer, falling
// back to the remote address for anonymous callers.
package identity

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors.
var (
	ErrMissingToken = errors.New("identity: token is empty")
	ErrInvalidToken = errors.New("identity: token is invalid")
	ErrNoSubject    = errors.New("identity: token has no subject")
)

// Config configures the resolver.
type Config struct {
	// SigningKey verifies HMAC-signed tokens. Empty disables token
	// resolution entirely; callers then key on the remote address.
	SigningKey []byte

	// PrincipalClaim is the claim carrying the identity.
	// Default: "sub"
	PrincipalClaim string
}

// Resolver maps credentials to rate-limit identities.
type Resolver struct {
	config Config
}

// NewResolver creates a resolver.
func NewResolver(config Config) *Resolver {
	// Apply defaults
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	return &Resolver{config: config}
}

// FromToken extracts the principal from a signed bearer token. The
// signature is verified; an unverifiable token never yields an identity.
func (r *Resolver) FromToken(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return "", ErrMissingToken
	}
	if len(r.config.SigningKey) == 0 {
		return "", ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return r.config.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	principal, _ := claims[r.config.PrincipalClaim].(string)
	if principal == "" {
		return "", ErrNoSubject
	}
	return principal, nil
}

// Resolve returns the rate-limit identity for a request: the token
// principal when one verifies, otherwise the remote address.
func (r *Resolver) Resolve(tokenString, remoteAddr string) string {
	if principal, err := r.FromToken(tokenString); err == nil {
		return principal
	}
	// Strip the port so one client is one identity.
	if i := strings.LastIndex(remoteAddr, ":"); i > 0 && !strings.Contains(remoteAddr[i:], "]") {
		remoteAddr = remoteAddr[:i]
	}
	return remoteAddr
}
