package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/signing"
)

// DeliveryService sends normalised payloads to customer webhooks.
// Every point ends up either accepted by the webhook or persisted for replay.
type DeliveryService struct {
	accounts    driven.AccountStore
	unprocessed driven.UnprocessedStore
	metrics     driven.MetricStore
	webhookLogs driven.WebhookLogStore
	healthData  driven.HealthDataStore
	sender      driven.WebhookSender
	failures    driven.FailureCounter
	notifier    driven.Notifier
	chunkSize   int
	threshold   int64
	logger      *slog.Logger
}

// DeliveryServiceConfig holds dependencies for DeliveryService.
type DeliveryServiceConfig struct {
	Accounts    driven.AccountStore
	Unprocessed driven.UnprocessedStore
	Metrics     driven.MetricStore
	WebhookLogs driven.WebhookLogStore // optional, debug copies
	HealthData  driven.HealthDataStore // optional, server-side storage
	Sender      driven.WebhookSender
	Failures    driven.FailureCounter
	Notifier    driven.Notifier

	ChunkSize        int
	FailureThreshold int
	Logger           *slog.Logger
}

// NewDeliveryService creates a new delivery service.
func NewDeliveryService(cfg DeliveryServiceConfig) *DeliveryService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = domain.DefaultChunkSize
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = domain.DefaultFailureThreshold
	}
	return &DeliveryService{
		accounts:    cfg.Accounts,
		unprocessed: cfg.Unprocessed,
		metrics:     cfg.Metrics,
		webhookLogs: cfg.WebhookLogs,
		healthData:  cfg.HealthData,
		sender:      cfg.Sender,
		failures:    cfg.Failures,
		notifier:    cfg.Notifier,
		chunkSize:   cfg.ChunkSize,
		threshold:   int64(cfg.FailureThreshold),
		logger:      logger,
	}
}

// Process routes a payload by the account's storage policy. The result is
// nil when the policy does not forward data to the webhook.
func (s *DeliveryService) Process(ctx context.Context, payload domain.Payload, account *domain.Account, conn *domain.Connection, provider domain.ProviderType) (*domain.DeliveryResult, error) {
	if payload.Count() == 0 {
		return nil, nil
	}

	var (
		result *domain.DeliveryResult
		errs   []error
	)
	if account.AllowsStorage() && s.healthData != nil {
		if err := s.healthData.SaveEntries(ctx, conn.ID, provider, payload); err != nil {
			errs = append(errs, fmt.Errorf("store health data: %w", err))
		}
	}
	if account.AllowsWebhook() {
		r, err := s.deliver(ctx, payload, account, conn, provider)
		if err != nil {
			errs = append(errs, err)
		}
		result = r
	}
	return result, errors.Join(errs...)
}

// Deliver sends the payload in ordered chunks and stops at the first failure,
// persisting the failed chunk and every chunk after it. It returns true only
// when every chunk was accepted. The error is non-nil only when undelivered
// chunks could not be persisted.
func (s *DeliveryService) Deliver(ctx context.Context, payload domain.Payload, account *domain.Account, conn *domain.Connection, provider domain.ProviderType) (bool, error) {
	result, err := s.deliver(ctx, payload, account, conn, provider)
	return result.Success(), err
}

func (s *DeliveryService) deliver(ctx context.Context, payload domain.Payload, account *domain.Account, conn *domain.Connection, provider domain.ProviderType) (*domain.DeliveryResult, error) {
	result := &domain.DeliveryResult{}
	chunks := payload.Split(s.chunkSize)
	if len(chunks) == 0 {
		return result, nil
	}

	if !account.HasWebhook() {
		s.logger.Info("no webhook configured, persisting payload",
			"account_id", account.ID,
			"connection_id", conn.ID,
			"chunks", len(chunks),
		)
		result.Persisted = len(chunks)
		return result, s.persist(ctx, chunks, conn, provider)
	}

	for i, chunk := range chunks {
		if s.send(ctx, chunk, account, conn, provider) {
			result.Sent++
			continue
		}
		result.Persisted = len(chunks) - i
		result.Disabled = !account.HasWebhook()
		return result, s.persist(ctx, chunks[i:], conn, provider)
	}
	return result, nil
}

// Redeliver resends a persisted chunk through the same path as Deliver but
// never persists. It returns the points that were not accepted; an empty
// remainder means the chunk was fully delivered.
func (s *DeliveryService) Redeliver(ctx context.Context, chunk *domain.UnprocessedChunk, account *domain.Account, conn *domain.Connection) (domain.Payload, error) {
	parts := chunk.Payload.Split(s.chunkSize)
	if !account.HasWebhook() {
		return chunk.Payload, domain.ErrWebhookNotConfigured
	}

	for i, part := range parts {
		if s.send(ctx, part, account, conn, chunk.Provider) {
			continue
		}
		remaining := domain.Payload{}
		for _, p := range parts[i:] {
			remaining.Merge(p)
		}
		return remaining, nil
	}
	return domain.Payload{}, nil
}

// send posts one chunk and records the outcome. It reports whether the webhook accepted it.
func (s *DeliveryService) send(ctx context.Context, chunk domain.Payload, account *domain.Account, conn *domain.Connection, provider domain.ProviderType) bool {
	body, err := json.Marshal(domain.WebhookBody{Data: chunk, UUID: conn.UserUUID})
	if err != nil {
		s.logger.Error("failed to encode webhook body", "account_id", account.ID, "error", err)
		s.recordFailure(ctx, account)
		return false
	}

	status, err := s.sender.Send(ctx, account.WebhookURL, body, signing.Sign(body, account.Key))
	if err != nil || !accepted(status) {
		s.logger.Warn("webhook delivery failed",
			"account_id", account.ID,
			"connection_id", conn.ID,
			"provider", provider,
			"status", status,
			"error", err,
		)
		s.recordFailure(ctx, account)
		return false
	}

	s.recordSuccess(ctx, chunk, account, conn, provider)
	return true
}

func accepted(status int) bool {
	return status >= 200 && status <= 202
}

func (s *DeliveryService) recordSuccess(ctx context.Context, chunk domain.Payload, account *domain.Account, conn *domain.Connection, provider domain.ProviderType) {
	if err := s.failures.Reset(ctx, account.ID); err != nil {
		s.logger.Warn("failed to reset failure counter", "account_id", account.ID, "error", err)
	}

	if err := s.metrics.RecordSyncMetrics(ctx, domain.MetricsFor(account.ID, provider, chunk)); err != nil {
		s.logger.Warn("failed to record sync metrics", "account_id", account.ID, "error", err)
	}

	if account.DebugStoreWebhookLogs && s.webhookLogs != nil {
		entry := &domain.WebhookLog{
			ID:        domain.GenerateID(),
			AccountID: account.ID,
			UserUUID:  conn.UserUUID,
			Payload:   chunk,
			CreatedAt: time.Now(),
		}
		if err := s.webhookLogs.Save(ctx, entry); err != nil {
			s.logger.Warn("failed to store webhook log", "account_id", account.ID, "error", err)
		}
	}
}

// recordFailure bumps the consecutive failure count and disables the webhook
// on the increment that reaches the threshold.
func (s *DeliveryService) recordFailure(ctx context.Context, account *domain.Account) {
	count, err := s.failures.Increment(ctx, account.ID)
	if err != nil {
		s.logger.Warn("failed to increment failure counter", "account_id", account.ID, "error", err)
		return
	}
	if count < s.threshold {
		return
	}

	url := account.WebhookURL
	if err := s.accounts.ClearWebhookURL(ctx, account.ID); err != nil {
		s.logger.Error("failed to disable webhook", "account_id", account.ID, "error", err)
		return
	}
	account.WebhookURL = ""

	if err := s.failures.Reset(ctx, account.ID); err != nil {
		s.logger.Warn("failed to reset failure counter", "account_id", account.ID, "error", err)
	}

	s.logger.Warn("webhook disabled", "account_id", account.ID, "failures", count)
	if err := s.notifier.Notify(ctx, domain.NewWebhookDisabledNotification(account.ID, url, count)); err != nil {
		s.logger.Error("failed to send webhook disabled notification", "account_id", account.ID, "error", err)
	}
}

func (s *DeliveryService) persist(ctx context.Context, chunks []domain.Payload, conn *domain.Connection, provider domain.ProviderType) error {
	for i, chunk := range chunks {
		if err := s.unprocessed.Save(ctx, domain.NewUnprocessedChunk(conn.ID, provider, chunk)); err != nil {
			return fmt.Errorf("persist unprocessed chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}
	s.logger.Info("persisted undelivered chunks", "connection_id", conn.ID, "provider", provider, "chunks", len(chunks))
	return nil
}
