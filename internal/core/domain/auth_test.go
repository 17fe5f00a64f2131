package domain

import (
	"testing"
	"time"
)

func TestNewAdminClaims(t *testing.T) {
	c := NewAdminClaims("ops", time.Hour)
	if c.Subject != "ops" {
		t.Errorf("expected subject ops, got %s", c.Subject)
	}
	if c.ExpiresAt-c.IssuedAt != int64(time.Hour/time.Second) {
		t.Errorf("expected one hour lifetime, got %ds", c.ExpiresAt-c.IssuedAt)
	}
	if c.IsExpired() {
		t.Error("fresh claims should not be expired")
	}
}

func TestAdminClaims_IsExpired(t *testing.T) {
	c := &AdminClaims{Subject: "ops", ExpiresAt: time.Now().Add(-time.Second).Unix()}
	if !c.IsExpired() {
		t.Error("expected expired claims")
	}
}
