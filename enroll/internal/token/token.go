// Package token inspects the Cloudflare Access JWT pasted by the operator.
//
// The signature is not verified here; the enrollment service does that.
// Inspection only catches paste mistakes and stale tokens before the
// request is sent.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmpty     = errors.New("access token is empty")
	ErrMalformed = errors.New("access token is not a valid JWT")
	ErrExpired   = errors.New("access token has expired")
)

type accessClaims struct {
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

type Claims struct {
	Raw       string
	Email     string
	Issuer    string
	Subject   string
	ExpiresAt time.Time
}

// Inspect trims the pasted value and decodes its claims.
func Inspect(raw string, now time.Time) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrEmpty
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := Claims{
		Raw:     raw,
		Email:   claims.Email,
		Issuer:  claims.Issuer,
		Subject: claims.Subject,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
		if out.ExpiresAt.Before(now) {
			return Claims{}, fmt.Errorf("%w at %s", ErrExpired, out.ExpiresAt.UTC().Format(time.RFC3339))
		}
	}
	return out, nil
}
