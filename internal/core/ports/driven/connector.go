package driven

import (
	"context"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// Connector fetches new data points for one provider link.
// Connectors never persist anything: watermarks come back buffered in the
// FetchResult and are committed by the caller on clean completion.
type Connector interface {
	// Provider returns the provider type.
	Provider() domain.ProviderType

	// Fetch returns points newer than the link's watermarks, grouped by
	// provider-native data type. A recoverable error on one stream drops only
	// that stream's in-flight pages. Transient whole-fetch failures wrap
	// domain.ErrProviderUnavailable.
	Fetch(ctx context.Context, req FetchRequest) (*domain.FetchResult, error)
}

// FetchRequest scopes one connector invocation
type FetchRequest struct {
	Link        *domain.ProviderLink
	AccessToken string

	// DataTypes lists the provider-native types to fetch
	DataTypes []string

	// Now anchors backfill windows; zero means time.Now()
	Now time.Time
}

// TokenRefresher exchanges a refresh token at the provider's token endpoint.
type TokenRefresher interface {
	// Refresh returns fresh tokens.
	// A client error (4xx, invalid_grant) wraps domain.ErrProviderAuth.
	// A server or transport error wraps domain.ErrProviderUnavailable.
	Refresh(ctx context.Context, refreshToken string) (*OAuthToken, error)
}

// OAuthToken represents OAuth tokens from a provider.
type OAuthToken struct {
	AccessToken string
	// RefreshToken is empty when the provider does not rotate refresh tokens
	RefreshToken string
	ExpiresIn    int // Seconds until expiry
	TokenType    string
	Scope        string
}

// LifecycleHooks react to explicit link transitions.
// Each provider registers one implementation, resolved once at startup.
type LifecycleHooks interface {
	// OnConnect runs after a link is created.
	OnConnect(ctx context.Context, link *domain.ProviderLink) error

	// OnReconnect runs after a logged-out link is re-authenticated.
	OnReconnect(ctx context.Context, link *domain.ProviderLink) error

	// OnDisconnect runs after a link is logged out by the user.
	// refreshToken is the token the link held before it was cleared.
	OnDisconnect(ctx context.Context, link *domain.ProviderLink, refreshToken string) error
}

// ConnectorRegistry resolves provider-specific collaborators.
type ConnectorRegistry interface {
	// Connector returns the fetcher for a provider.
	Connector(provider domain.ProviderType) (Connector, error)

	// Refresher returns the token refresher for a provider.
	Refresher(provider domain.ProviderType) (TokenRefresher, error)

	// Hooks returns the lifecycle hooks for a provider (no-op hooks when none are registered).
	Hooks(provider domain.ProviderType) LifecycleHooks

	// SupportedProviders returns every provider with a registered connector.
	SupportedProviders() []domain.ProviderType
}
