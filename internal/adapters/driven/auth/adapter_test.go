package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

func TestAdapter_RoundTrip(t *testing.T) {
	adapter := NewAdapter("test-secret")

	claims := domain.NewAdminClaims("ops", time.Hour)
	token, err := adapter.GenerateToken(claims)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if parsed.Subject != "ops" {
		t.Errorf("expected subject ops, got %s", parsed.Subject)
	}
	if parsed.ExpiresAt != claims.ExpiresAt {
		t.Errorf("expected expiry %d, got %d", claims.ExpiresAt, parsed.ExpiresAt)
	}
}

func TestAdapter_ParseToken_WrongSecret(t *testing.T) {
	token, _ := NewAdapter("secret-a").GenerateToken(domain.NewAdminClaims("ops", time.Hour))

	_, err := NewAdapter("secret-b").ParseToken(token)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAdapter_ParseToken_Expired(t *testing.T) {
	adapter := NewAdapter("secret")
	claims := &domain.AdminClaims{
		Subject:   "ops",
		IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}
	token, _ := adapter.GenerateToken(claims)

	if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAdapter_ParseToken_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewAdapter("secret").ParseToken(s); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAdapter_ParseToken_Garbage(t *testing.T) {
	if _, err := NewAdapter("secret").ParseToken("not-a-token"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
