package driven

import (
	"context"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// AccountStore exposes the account fields the core reads and the one it writes
type AccountStore interface {
	// Get retrieves an account by ID
	Get(ctx context.Context, id string) (*domain.Account, error)

	// GetByKey retrieves an account by its API key
	GetByKey(ctx context.Context, key string) (*domain.Account, error)

	// ClearWebhookURL removes the webhook URL (auto-disable)
	ClearWebhookURL(ctx context.Context, id string) error
}

// ConnectionStore reads end-user connections
type ConnectionStore interface {
	Get(ctx context.Context, id string) (*domain.Connection, error)

	// GetByUser retrieves the connection of an end user within an account
	GetByUser(ctx context.Context, accountID, userUUID string) (*domain.Connection, error)

	// Create inserts a connection, returning the existing one for the same (account, user)
	Create(ctx context.Context, conn *domain.Connection) (*domain.Connection, error)
}
