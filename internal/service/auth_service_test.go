package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signTestToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseAccessToken_Valid(t *testing.T) {
	svc := NewAuthService("secret")
	token := signTestToken(t, "secret", Claims{
		UserID: "u1",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("expected user u1, got %q", claims.UserID)
	}
	if !claims.IsAdmin() {
		t.Fatalf("expected admin role")
	}
}

func TestParseAccessToken_SubjectFallback(t *testing.T) {
	svc := NewAuthService("secret")
	token := signTestToken(t, "secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u2",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.UserID != "u2" {
		t.Fatalf("expected subject fallback u2, got %q", claims.UserID)
	}
	if claims.IsAdmin() {
		t.Fatalf("expected non-admin by default")
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	svc := NewAuthService("secret")
	token := signTestToken(t, "secret", Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessToken_Invalid(t *testing.T) {
	svc := NewAuthService("secret")

	if _, err := svc.ParseAccessToken(""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty, got %v", err)
	}
	if _, err := svc.ParseAccessToken("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}

	wrongSecret := signTestToken(t, "other", Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := svc.ParseAccessToken(wrongSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}

	noUser := signTestToken(t, "secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := svc.ParseAccessToken(noUser); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid without user id, got %v", err)
	}
}

func TestParseAccessToken_NoSecret(t *testing.T) {
	svc := NewAuthService("")
	if _, err := svc.ParseAccessToken("anything"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid without secret, got %v", err)
	}
}
