package domain

import "time"

// DefaultAdminTokenTTL is the lifetime of minted admin tokens
const DefaultAdminTokenTTL = 12 * time.Hour

// AdminClaims is the payload of an admin bearer token.
// Admin tokens guard the trigger and link-management routes.
type AdminClaims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// NewAdminClaims creates claims for subject valid for ttl from now
func NewAdminClaims(subject string, ttl time.Duration) *AdminClaims {
	now := time.Now()
	return &AdminClaims{
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// IsExpired reports whether the claims have expired
func (c *AdminClaims) IsExpired() bool {
	return time.Now().Unix() >= c.ExpiresAt
}
