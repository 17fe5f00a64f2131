package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Ensure Adapter implements AuthAdapter
var _ driven.AuthAdapter = (*Adapter)(nil)

const issuer = "heka"

// Adapter signs and verifies admin tokens with HS256
type Adapter struct {
	jwtSecret []byte
}

// NewAdapter creates a new auth adapter with the given JWT secret
func NewAdapter(jwtSecret string) *Adapter {
	return &Adapter{jwtSecret: []byte(jwtSecret)}
}

// GenerateToken creates a signed JWT from admin claims
func (a *Adapter) GenerateToken(claims *domain.AdminClaims) (string, error) {
	rc := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0)),
		ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, rc).SignedString(a.jwtSecret)
}

// ParseToken validates a JWT and extracts admin claims
func (a *Adapter) ParseToken(tokenString string) (*domain.AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	rc, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || rc.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrTokenInvalid)
	}

	claims := &domain.AdminClaims{
		Subject:   rc.Subject,
		ExpiresAt: rc.ExpiresAt.Unix(),
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Unix()
	}
	return claims, nil
}
