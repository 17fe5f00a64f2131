package driven

import (
	"context"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// MetricStore records per-(account, type, provider) delivery aggregates
type MetricStore interface {
	RecordSyncMetrics(ctx context.Context, metrics []*domain.DataSyncMetric) error
}

// WebhookLogStore keeps debug copies of delivered chunks
type WebhookLogStore interface {
	Save(ctx context.Context, log *domain.WebhookLog) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HealthDataStore stores data server-side for accounts whose policy allows it
type HealthDataStore interface {
	SaveEntries(ctx context.Context, connectionID string, provider domain.ProviderType, payload domain.Payload) error
}
