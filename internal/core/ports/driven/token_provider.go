package driven

import (
	"context"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// TokenProvider hands out usable access tokens for provider links.
// It reuses the cached token while unexpired, refreshes otherwise, and
// persists whatever the refresh returned.
type TokenProvider interface {
	// AccessToken returns a valid access token for the link.
	// On domain.ErrProviderAuth the link has already been marked logged out
	// (in the store and on the passed struct). On domain.ErrProviderUnavailable
	// the link is left untouched.
	AccessToken(ctx context.Context, link *domain.ProviderLink) (string, error)
}
