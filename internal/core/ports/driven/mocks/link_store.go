package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// MockLinkStore is an in-memory LinkStore.
// Get returns copies so callers cannot mutate stored state behind the store's back.
type MockLinkStore struct {
	mu    sync.RWMutex
	links map[string]*domain.ProviderLink

	// Accounts backs ListEligible's webhook filter when set
	Accounts *MockAccountStore

	// Commits counts CommitSync calls per link
	Commits map[string]int

	CommitSyncFn func(id string, watermarks map[string]int64) error
}

// NewMockLinkStore creates a new MockLinkStore
func NewMockLinkStore(links ...*domain.ProviderLink) *MockLinkStore {
	m := &MockLinkStore{
		links:   make(map[string]*domain.ProviderLink),
		Commits: make(map[string]int),
	}
	for _, l := range links {
		m.links[l.ID] = l
	}
	return m
}

func copyLink(l *domain.ProviderLink) *domain.ProviderLink {
	cp := *l
	if l.Watermarks != nil {
		cp.Watermarks = make(map[string]int64, len(l.Watermarks))
		for k, v := range l.Watermarks {
			cp.Watermarks[k] = v
		}
	}
	cp.DeviceUUIDs = append([]string(nil), l.DeviceUUIDs...)
	return &cp
}

// Snapshot returns the stored link for assertions
func (m *MockLinkStore) Snapshot(id string) *domain.ProviderLink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[id]
	if !ok {
		return nil
	}
	return copyLink(l)
}

func (m *MockLinkStore) Get(ctx context.Context, id string) (*domain.ProviderLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyLink(l), nil
}

func (m *MockLinkStore) find(match func(*domain.ProviderLink) bool) (*domain.ProviderLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.links {
		if match(l) {
			return copyLink(l), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockLinkStore) GetByConnection(ctx context.Context, connectionID string, provider domain.ProviderType) (*domain.ProviderLink, error) {
	return m.find(func(l *domain.ProviderLink) bool {
		return l.ConnectionID == connectionID && l.Provider == provider
	})
}

func (m *MockLinkStore) FindByProviderUser(ctx context.Context, provider domain.ProviderType, providerUserID string) (*domain.ProviderLink, error) {
	return m.find(func(l *domain.ProviderLink) bool {
		return l.Provider == provider && l.ProviderUserID == providerUserID
	})
}

func (m *MockLinkStore) FindBySubscription(ctx context.Context, provider domain.ProviderType, subscriptionID string) (*domain.ProviderLink, error) {
	return m.find(func(l *domain.ProviderLink) bool {
		return l.Provider == provider && l.SubscriptionID == subscriptionID
	})
}

func (m *MockLinkStore) ListEligible(ctx context.Context, provider domain.ProviderType) ([]*domain.ProviderLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ProviderLink
	for _, l := range m.links {
		if l.Provider != provider || !l.LoggedIn {
			continue
		}
		if m.Accounts != nil {
			a, err := m.Accounts.Get(ctx, l.AccountID)
			if err != nil || !a.HasWebhook() {
				continue
			}
		}
		out = append(out, copyLink(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockLinkStore) Save(ctx context.Context, link *domain.ProviderLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.ID] = copyLink(link)
	return nil
}

func (m *MockLinkStore) SaveTokens(ctx context.Context, id, accessToken string, expiry time.Time, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.AccessToken = accessToken
	l.AccessTokenExpiry = &expiry
	if refreshToken != "" {
		l.RefreshToken = refreshToken
	}
	return nil
}

func (m *MockLinkStore) MarkLoggedOut(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.MarkLoggedOut()
	return nil
}

func (m *MockLinkStore) CommitSync(ctx context.Context, id string, lastSync time.Time, watermarks map[string]int64) error {
	if m.CommitSyncFn != nil {
		if err := m.CommitSyncFn(id, watermarks); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.LastSync = &lastSync
	l.MergeWatermarks(watermarks)
	m.Commits[id]++
	return nil
}

func (m *MockLinkStore) TouchLastSync(ctx context.Context, id string, lastSync time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.LastSync = &lastSync
	return nil
}
