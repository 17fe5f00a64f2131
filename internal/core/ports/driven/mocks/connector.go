package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// MockConnector is a mock implementation of Connector for testing
type MockConnector struct {
	ProviderType domain.ProviderType
	FetchFn      func(ctx context.Context, req driven.FetchRequest) (*domain.FetchResult, error)

	mu       sync.Mutex
	Requests []driven.FetchRequest
}

func NewMockConnector(provider domain.ProviderType) *MockConnector {
	return &MockConnector{ProviderType: provider}
}

func (m *MockConnector) Provider() domain.ProviderType {
	return m.ProviderType
}

func (m *MockConnector) Fetch(ctx context.Context, req driven.FetchRequest) (*domain.FetchResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.FetchFn != nil {
		return m.FetchFn(ctx, req)
	}
	return domain.NewFetchResult(), nil
}

// Calls returns how many times Fetch ran
func (m *MockConnector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// MockTokenRefresher is a mock implementation of TokenRefresher for testing
type MockTokenRefresher struct {
	RefreshFn func(ctx context.Context, refreshToken string) (*driven.OAuthToken, error)

	mu    sync.Mutex
	calls int
}

func NewMockTokenRefresher() *MockTokenRefresher {
	return &MockTokenRefresher{}
}

func (m *MockTokenRefresher) Refresh(ctx context.Context, refreshToken string) (*driven.OAuthToken, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RefreshFn != nil {
		return m.RefreshFn(ctx, refreshToken)
	}
	return &driven.OAuthToken{AccessToken: "access-" + refreshToken, ExpiresIn: 3600, TokenType: "Bearer"}, nil
}

// Calls returns how many times Refresh ran
func (m *MockTokenRefresher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockLifecycleHooks records lifecycle transitions
type MockLifecycleHooks struct {
	mu           sync.Mutex
	Connected    []string
	Reconnected  []string
	Disconnected []string

	OnConnectFn func(ctx context.Context, link *domain.ProviderLink) error
}

func NewMockLifecycleHooks() *MockLifecycleHooks {
	return &MockLifecycleHooks{}
}

func (m *MockLifecycleHooks) OnConnect(ctx context.Context, link *domain.ProviderLink) error {
	m.mu.Lock()
	m.Connected = append(m.Connected, link.ID)
	m.mu.Unlock()
	if m.OnConnectFn != nil {
		return m.OnConnectFn(ctx, link)
	}
	return nil
}

func (m *MockLifecycleHooks) OnReconnect(ctx context.Context, link *domain.ProviderLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconnected = append(m.Reconnected, link.ID)
	return nil
}

func (m *MockLifecycleHooks) OnDisconnect(ctx context.Context, link *domain.ProviderLink, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disconnected = append(m.Disconnected, link.ID)
	return nil
}

// MockConnectorRegistry is a mock implementation of ConnectorRegistry for testing
type MockConnectorRegistry struct {
	Connectors map[domain.ProviderType]driven.Connector
	Refreshers map[domain.ProviderType]driven.TokenRefresher
	HookSet    map[domain.ProviderType]driven.LifecycleHooks
}

func NewMockConnectorRegistry() *MockConnectorRegistry {
	return &MockConnectorRegistry{
		Connectors: make(map[domain.ProviderType]driven.Connector),
		Refreshers: make(map[domain.ProviderType]driven.TokenRefresher),
		HookSet:    make(map[domain.ProviderType]driven.LifecycleHooks),
	}
}

func (m *MockConnectorRegistry) Connector(provider domain.ProviderType) (driven.Connector, error) {
	c, ok := m.Connectors[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectorNotFound, provider)
	}
	return c, nil
}

func (m *MockConnectorRegistry) Refresher(provider domain.ProviderType) (driven.TokenRefresher, error) {
	r, ok := m.Refreshers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectorNotFound, provider)
	}
	return r, nil
}

func (m *MockConnectorRegistry) Hooks(provider domain.ProviderType) driven.LifecycleHooks {
	if h, ok := m.HookSet[provider]; ok {
		return h
	}
	return NewMockLifecycleHooks()
}

func (m *MockConnectorRegistry) SupportedProviders() []domain.ProviderType {
	out := make([]domain.ProviderType, 0, len(m.Connectors))
	for p := range m.Connectors {
		out = append(out, p)
	}
	return out
}

// MockTokenProvider is a mock implementation of TokenProvider for testing
type MockTokenProvider struct {
	AccessTokenFn func(ctx context.Context, link *domain.ProviderLink) (string, error)
}

func NewMockTokenProvider() *MockTokenProvider {
	return &MockTokenProvider{}
}

func (m *MockTokenProvider) AccessToken(ctx context.Context, link *domain.ProviderLink) (string, error) {
	if m.AccessTokenFn != nil {
		return m.AccessTokenFn(ctx, link)
	}
	return "token-" + link.ID, nil
}
