package driven

import (
	"context"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// UnprocessedStore is the durable queue of undelivered chunks
type UnprocessedStore interface {
	Save(ctx context.Context, chunk *domain.UnprocessedChunk) error

	// ListRecentFirst pages chunks newest first. Pass a nil cursor for the first page.
	ListRecentFirst(ctx context.Context, cursor *UnprocessedCursor, limit int) ([]*domain.UnprocessedChunk, error)

	// UpdatePayload replaces the payload of a partially replayed chunk
	UpdatePayload(ctx context.Context, id string, payload domain.Payload) error

	Delete(ctx context.Context, id string) error

	Count(ctx context.Context) (int64, error)
}

// UnprocessedCursor is a keyset position in created_at DESC, id DESC order
type UnprocessedCursor struct {
	CreatedAt time.Time
	ID        string
}
