package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ConnectorRegistry = (*Registry)(nil)

// Registry resolves connectors, token refreshers and lifecycle hooks per provider.
// Everything is registered once at startup; lookups are read-only afterwards.
type Registry struct {
	mu         sync.RWMutex
	connectors map[domain.ProviderType]driven.Connector
	refreshers map[domain.ProviderType]driven.TokenRefresher
	hooks      map[domain.ProviderType]driven.LifecycleHooks
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[domain.ProviderType]driven.Connector),
		refreshers: make(map[domain.ProviderType]driven.TokenRefresher),
		hooks:      make(map[domain.ProviderType]driven.LifecycleHooks),
	}
}

// Register registers the fetcher and token refresher of a provider.
func (r *Registry) Register(connector driven.Connector, refresher driven.TokenRefresher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[connector.Provider()] = connector
	if refresher != nil {
		r.refreshers[connector.Provider()] = refresher
	}
}

// RegisterHooks registers lifecycle hooks for a provider.
func (r *Registry) RegisterHooks(provider domain.ProviderType, hooks driven.LifecycleHooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[provider] = hooks
}

// Connector returns the fetcher for a provider.
func (r *Registry) Connector(provider domain.ProviderType) (driven.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectorNotFound, provider)
	}
	return c, nil
}

// Refresher returns the token refresher for a provider.
func (r *Registry) Refresher(provider domain.ProviderType) (driven.TokenRefresher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rf, ok := r.refreshers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectorNotFound, provider)
	}
	return rf, nil
}

// Hooks returns the lifecycle hooks for a provider, or NoopHooks.
func (r *Registry) Hooks(provider domain.ProviderType) driven.LifecycleHooks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.hooks[provider]; ok {
		return h
	}
	return NoopHooks{}
}

// SupportedProviders returns all registered provider types, sorted.
func (r *Registry) SupportedProviders() []domain.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.ProviderType, 0, len(r.connectors))
	for t := range r.connectors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// NoopHooks is used by providers that need nothing done on link transitions.
type NoopHooks struct{}

func (NoopHooks) OnConnect(context.Context, *domain.ProviderLink) error   { return nil }
func (NoopHooks) OnReconnect(context.Context, *domain.ProviderLink) error { return nil }
func (NoopHooks) OnDisconnect(context.Context, *domain.ProviderLink, string) error {
	return nil
}
