package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpiredAPIKey means the configured key can never be accepted by
// the server; the user has to issue a new one.
var ErrExpiredAPIKey = errors.New("api key is expired")

// CheckAPIKey pre-flights the configured API key before a session dials
// out. Keys are opaque to the client except when they look like a JWT,
// in which case an expired or mangled token is rejected locally so the
// user gets a readable error instead of an unauthorized close later.
// The signature is not checked; the client holds no signing secret.
func CheckAPIKey(key string, now time.Time) error {
	if key == "" {
		return nil
	}
	if strings.Count(key, ".") != 2 {
		// Not a JWT. Let the server judge it.
		return nil
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(key, &claims); err != nil {
		return fmt.Errorf("malformed api key: %w", err)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(now) {
		return ErrExpiredAPIKey
	}
	return nil
}
