package driven

import "github.com/Pulkit07/metric-health-backend/internal/core/domain"

// AuthAdapter mints and verifies admin bearer tokens.
type AuthAdapter interface {
	GenerateToken(claims *domain.AdminClaims) (string, error)

	// ParseToken validates a token and returns its claims.
	// Invalid or expired tokens wrap domain.ErrTokenInvalid.
	ParseToken(token string) (*domain.AdminClaims, error)
}
