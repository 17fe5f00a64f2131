package driving

import (
	"context"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// SyncOrchestrator pulls provider data for links and hands it to delivery
type SyncOrchestrator interface {
	// SyncLink syncs one provider link under its lock
	SyncLink(ctx context.Context, linkID string) (*domain.SyncResult, error)

	// SyncProvider sweeps every eligible link of a provider
	SyncProvider(ctx context.Context, provider domain.ProviderType) (*domain.SweepResult, error)
}

// ReplayService redrives the unprocessed chunk store
type ReplayService interface {
	RunOnce(ctx context.Context) (*domain.ReplayResult, error)
}

// PurgeService sweeps the idempotency log and debug webhook logs
type PurgeService interface {
	Purge(ctx context.Context) (*domain.PurgeResult, error)
}

// Scheduler turns recurring schedules into queue tasks
type Scheduler interface {
	Start(ctx context.Context) error
	Stop()

	// TriggerNow enqueues a schedule immediately
	TriggerNow(ctx context.Context, id string) (*domain.Task, error)
}
