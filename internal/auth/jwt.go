package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInspector reads claims from access tokens without verifying their
// signature. The backend stays the authority on validity; the client only
// uses the expiry to decide when to refresh.
type TokenInspector struct {
	parser *jwt.Parser
}

// NewTokenInspector creates a new inspector
func NewTokenInspector() *TokenInspector {
	return &TokenInspector{parser: jwt.NewParser()}
}

// ExpiresAt returns the exp claim. ok is false for opaque tokens and tokens
// without an expiry.
func (i *TokenInspector) ExpiresAt(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

// Subject returns the sub claim, or "" when absent or unreadable
func (i *TokenInspector) Subject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
