// Package credential holds helpers for bearer credentials and their expiry
// timestamps. Nothing here verifies a credential; tokens are opaque to the
// session manager and only peeked at to find a default expiry.
package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a JWT carries no exp claim.
var ErrNoExpiry = errors.New("token has no exp claim")

// layouts accepted by ParseExpiry, tried in order. Values without a zone are UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseExpiry parses an absolute ISO-8601 instant such as the
// "2024-05-01T12:00:00.000Z" strings browsers produce.
func ParseExpiry(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, errors.New("empty expiry")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable expiry %q", value)
}

// FormatExpiry renders t the way the stores persist it.
func FormatExpiry(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ExpiryFromJWT returns the exp claim of a JWT without checking its signature.
func ExpiryFromJWT(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Mask shortens a credential for display, keeping only its ends.
func Mask(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:6] + "..." + token[len(token)-4:]
}
