package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndDecode(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewTokenService("test-secret", WithClock(func() time.Time { return base }))
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	token, expiresAt, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if want := base.Add(180 * time.Minute); !expiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", expiresAt, want)
	}

	claims, err := svc.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("subject = %q, want alice", claims.Subject)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("user_id = %q, want user-1", claims.UserID)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("type = %q, want %q", claims.TokenType, TokenTypeAccess)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti claim")
	}
	if claims.Issuer != "idgate" {
		t.Fatalf("issuer = %q, want idgate", claims.Issuer)
	}
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewTokenService("test-secret",
		WithAccessTTL(time.Minute),
		WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	token, _, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := svc.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestDecodeRejectsTamperedToken(t *testing.T) {
	svc, err := NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	token, _, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := svc.Decode(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestDecodeRejectsTokenWithoutExpiry(t *testing.T) {
	svc, err := NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	// Correctly signed, correct shape, but no exp claim. Such a token would
	// never age out, so decoding must fail even with a valid signature.
	claims := Claims{
		UserID:    "user-1",
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "idgate",
			Subject:  "alice",
			IssuedAt: jwt.NewNumericDate(time.Now()),
			ID:       "jti-1",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for token without exp, got %v", err)
	}
}

func TestDecodeRejectsForeignSecret(t *testing.T) {
	issuer, _ := NewTokenService("secret-a")
	verifier, _ := NewTokenService("secret-b")
	token, _, err := issuer.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService("   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}
