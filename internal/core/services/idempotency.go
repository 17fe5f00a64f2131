package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driving"
	"github.com/Pulkit07/metric-health-backend/internal/signing"
)

var _ driving.PurgeService = (*IdempotencyGuard)(nil)

// DefaultWebhookLogRetention is how long debug webhook logs are kept
const DefaultWebhookLogRetention = 48 * time.Hour

// IdempotencyGuard drops redelivered inbound payloads.
// A payload is claimed by writing its content hash before any side effect.
type IdempotencyGuard struct {
	store               driven.IdempotencyStore
	webhookLogs         driven.WebhookLogStore
	retention           time.Duration
	webhookLogRetention time.Duration
	logger              *slog.Logger
	now                 func() time.Time
}

// IdempotencyGuardConfig holds dependencies for IdempotencyGuard.
type IdempotencyGuardConfig struct {
	Store       driven.IdempotencyStore
	WebhookLogs driven.WebhookLogStore // optional

	Retention           time.Duration
	WebhookLogRetention time.Duration
	Logger              *slog.Logger
}

// NewIdempotencyGuard creates a new idempotency guard.
func NewIdempotencyGuard(cfg IdempotencyGuardConfig) *IdempotencyGuard {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = domain.DefaultIdempotencyRetention
	}
	if cfg.WebhookLogRetention <= 0 {
		cfg.WebhookLogRetention = DefaultWebhookLogRetention
	}
	return &IdempotencyGuard{
		store:               cfg.Store,
		webhookLogs:         cfg.WebhookLogs,
		retention:           cfg.Retention,
		webhookLogRetention: cfg.WebhookLogRetention,
		logger:              logger,
		now:                 time.Now,
	}
}

// Claim records the payload hash within scope. It returns false when the same
// payload was already claimed; the caller should then report success and stop.
// Volatile keys are ignored when hashing.
func (g *IdempotencyGuard) Claim(ctx context.Context, scope string, payload []byte, volatile ...string) (bool, error) {
	hash, err := signing.ContentHash(payload, volatile...)
	if err != nil {
		return false, fmt.Errorf("hash payload: %w", err)
	}

	claimed, err := g.store.Record(ctx, scope, hash)
	if err != nil {
		return false, fmt.Errorf("record idempotency hash: %w", err)
	}
	if !claimed {
		g.logger.Info("duplicate payload dropped", "scope", scope, "hash", hash)
	}
	return claimed, nil
}

// Purge deletes idempotency records past retention and expired debug webhook logs.
func (g *IdempotencyGuard) Purge(ctx context.Context) (*domain.PurgeResult, error) {
	now := g.now()
	result := &domain.PurgeResult{}

	n, err := g.store.PurgeBefore(ctx, now.Add(-g.retention))
	if err != nil {
		return nil, fmt.Errorf("purge idempotency records: %w", err)
	}
	result.Records = n

	if g.webhookLogs != nil {
		n, err := g.webhookLogs.PurgeBefore(ctx, now.Add(-g.webhookLogRetention))
		if err != nil {
			return result, fmt.Errorf("purge webhook logs: %w", err)
		}
		result.WebhookLogs = n
	}

	g.logger.Info("purge completed", "records", result.Records, "webhook_logs", result.WebhookLogs)
	return result, nil
}
