package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestCheckAPIKey(t *testing.T) {
	now := time.Now()

	if err := CheckAPIKey("", now); err != nil {
		t.Fatalf("empty key: %v", err)
	}
	if err := CheckAPIKey("plain-opaque-key", now); err != nil {
		t.Fatalf("opaque key: %v", err)
	}
	if err := CheckAPIKey(signedToken(t, now.Add(time.Hour)), now); err != nil {
		t.Fatalf("valid token: %v", err)
	}

	err := CheckAPIKey(signedToken(t, now.Add(-time.Hour)), now)
	if !errors.Is(err, ErrExpiredAPIKey) {
		t.Fatalf("expired token: got %v, want ErrExpiredAPIKey", err)
	}

	if err := CheckAPIKey("a.b.c", now); err == nil {
		t.Fatal("mangled token accepted")
	}
}
