package driven

import (
	"context"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// LinkStore persists provider links
type LinkStore interface {
	Get(ctx context.Context, id string) (*domain.ProviderLink, error)

	// GetByConnection retrieves the link of a connection for one provider
	GetByConnection(ctx context.Context, connectionID string, provider domain.ProviderType) (*domain.ProviderLink, error)

	// FindByProviderUser resolves a link from the provider's user id (push events)
	FindByProviderUser(ctx context.Context, provider domain.ProviderType, providerUserID string) (*domain.ProviderLink, error)

	// FindBySubscription resolves a link from our push subscription id
	FindBySubscription(ctx context.Context, provider domain.ProviderType, subscriptionID string) (*domain.ProviderLink, error)

	// ListEligible returns logged-in links of the provider whose account has a webhook URL
	ListEligible(ctx context.Context, provider domain.ProviderType) ([]*domain.ProviderLink, error)

	// Save creates or updates a link (connect, reconnect, disconnect)
	Save(ctx context.Context, link *domain.ProviderLink) error

	// SaveTokens caches a fresh access token and any rotated refresh token
	SaveTokens(ctx context.Context, id, accessToken string, expiry time.Time, refreshToken string) error

	// MarkLoggedOut clears the refresh token and flips logged_in to false
	MarkLoggedOut(ctx context.Context, id string) error

	// CommitSync sets last_sync and merges buffered watermarks.
	// Stored watermarks never decrease.
	CommitSync(ctx context.Context, id string, lastSync time.Time, watermarks map[string]int64) error

	// TouchLastSync sets last_sync without touching watermarks (device uploads)
	TouchLastSync(ctx context.Context, id string, lastSync time.Time) error
}
