package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what can be read from a bearer token without verifying it.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Inspect decodes a JWT-shaped credential without checking its signature.
// The result is informational only (status display, expiry hints); the backend
// stays the authority on validity. Opaque tokens return ok=false.
func Inspect(token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}

	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, false
	}

	c := Claims{
		Subject: tc.Subject,
		Email:   tc.Email,
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	return c, true
}

// Expired reports whether the claims carry an expiry that is in the past.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
