package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driving"
)

var _ driving.ReplayService = (*ReplayService)(nil)

const (
	// ReplayLockName guards the single global replay run
	ReplayLockName = "replay-unprocessed"

	// DefaultReplayLockTTL bounds one replay run
	DefaultReplayLockTTL = 3 * time.Hour

	// DefaultReplayBatchSize is the number of chunks read per page
	DefaultReplayBatchSize = 100

	// DefaultMaxChunkPoints is the largest chunk replay will resend
	DefaultMaxChunkPoints = 5000
)

// ReplayService redrives undelivered chunks, newest first.
// The store is the retry queue: a chunk is deleted once delivered and
// otherwise stays for the next run.
type ReplayService struct {
	unprocessed    driven.UnprocessedStore
	connections    driven.ConnectionStore
	accounts       driven.AccountStore
	delivery       *DeliveryService
	lock           driven.DistributedLock
	lockTTL        time.Duration
	batchSize      int
	maxChunkPoints int
	logger         *slog.Logger
}

// ReplayServiceConfig holds dependencies for ReplayService.
type ReplayServiceConfig struct {
	Unprocessed driven.UnprocessedStore
	Connections driven.ConnectionStore
	Accounts    driven.AccountStore
	Delivery    *DeliveryService
	Lock        driven.DistributedLock

	LockTTL        time.Duration
	BatchSize      int
	MaxChunkPoints int
	Logger         *slog.Logger
}

// NewReplayService creates a new replay service.
func NewReplayService(cfg ReplayServiceConfig) *ReplayService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultReplayLockTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultReplayBatchSize
	}
	if cfg.MaxChunkPoints <= 0 {
		cfg.MaxChunkPoints = DefaultMaxChunkPoints
	}
	return &ReplayService{
		unprocessed:    cfg.Unprocessed,
		connections:    cfg.Connections,
		accounts:       cfg.Accounts,
		delivery:       cfg.Delivery,
		lock:           cfg.Lock,
		lockTTL:        cfg.LockTTL,
		batchSize:      cfg.BatchSize,
		maxChunkPoints: cfg.MaxChunkPoints,
		logger:         logger,
	}
}

// RunOnce drains the unprocessed store once. It is a no-op when another
// instance holds the replay lock.
func (s *ReplayService) RunOnce(ctx context.Context) (*domain.ReplayResult, error) {
	startTime := time.Now()
	result := &domain.ReplayResult{}

	acquired, err := s.lock.Acquire(ctx, ReplayLockName, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire replay lock: %w", err)
	}
	if !acquired {
		s.logger.Debug("replay already running elsewhere")
		return result, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), ReplayLockName); err != nil {
			s.logger.Warn("failed to release replay lock", "error", err)
		}
	}()
	result.Ran = true

	// Accounts are shared across rows so an auto-disable is seen by later rows
	accounts := make(map[string]*domain.Account)
	connections := make(map[string]*domain.Connection)

	var cursor *driven.UnprocessedCursor
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := s.unprocessed.ListRecentFirst(ctx, cursor, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("list unprocessed chunks: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, chunk := range page {
			result.Total++
			s.replayChunk(ctx, chunk, accounts, connections, result)
		}

		last := page[len(page)-1]
		cursor = &driven.UnprocessedCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		if len(page) < s.batchSize {
			break
		}
	}

	result.Duration = time.Since(startTime).Seconds()
	s.logger.Info("replay completed",
		"total", result.Total,
		"delivered", result.Delivered,
		"partial", result.Partial,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration_seconds", result.Duration,
	)
	return result, nil
}

func (s *ReplayService) replayChunk(ctx context.Context, chunk *domain.UnprocessedChunk, accounts map[string]*domain.Account, connections map[string]*domain.Connection, result *domain.ReplayResult) {
	total := chunk.Payload.Count()
	if total > s.maxChunkPoints {
		s.logger.Warn("skipping oversized chunk", "chunk_id", chunk.ID, "points", total)
		result.Skipped++
		return
	}

	conn, account, err := s.resolve(ctx, chunk.ConnectionID, accounts, connections)
	if err != nil {
		s.logger.Warn("skipping chunk with unresolvable owner", "chunk_id", chunk.ID, "connection_id", chunk.ConnectionID, "error", err)
		result.Skipped++
		return
	}
	if !account.HasWebhook() {
		result.Skipped++
		return
	}

	remaining, err := s.delivery.Redeliver(ctx, chunk, account, conn)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookNotConfigured) {
			result.Skipped++
			return
		}
		s.logger.Error("replay failed", "chunk_id", chunk.ID, "error", err)
		result.Failed++
		return
	}

	switch left := remaining.Count(); {
	case left == 0:
		if err := s.unprocessed.Delete(ctx, chunk.ID); err != nil {
			s.logger.Error("failed to delete replayed chunk", "chunk_id", chunk.ID, "error", err)
			result.Failed++
			return
		}
		result.Delivered++
	case left < total:
		// A row that cannot shrink still holds the sent points and will resend them.
		if err := s.unprocessed.UpdatePayload(ctx, chunk.ID, remaining); err != nil {
			s.logger.Error("failed to shrink replayed chunk", "chunk_id", chunk.ID, "error", err)
			result.Failed++
			return
		}
		result.Partial++
	default:
		result.Failed++
	}
}

func (s *ReplayService) resolve(ctx context.Context, connectionID string, accounts map[string]*domain.Account, connections map[string]*domain.Connection) (*domain.Connection, *domain.Account, error) {
	conn, ok := connections[connectionID]
	if !ok {
		c, err := s.connections.Get(ctx, connectionID)
		if err != nil {
			return nil, nil, err
		}
		connections[connectionID] = c
		conn = c
	}

	account, ok := accounts[conn.AccountID]
	if !ok {
		a, err := s.accounts.Get(ctx, conn.AccountID)
		if err != nil {
			return nil, nil, err
		}
		accounts[conn.AccountID] = a
		account = a
	}
	return conn, account, nil
}
