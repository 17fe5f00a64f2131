package mocks

import (
	"context"
	"sync"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// MockAccountStore is an in-memory AccountStore
type MockAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	// Cleared records every ClearWebhookURL call
	Cleared []string
}

// NewMockAccountStore creates a new MockAccountStore
func NewMockAccountStore(accounts ...*domain.Account) *MockAccountStore {
	m := &MockAccountStore{accounts: make(map[string]*domain.Account)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

// Put adds or replaces an account
func (m *MockAccountStore) Put(a *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
}

func (m *MockAccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockAccountStore) GetByKey(ctx context.Context, key string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Key == key {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAccountStore) ClearWebhookURL(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.WebhookURL = ""
	m.Cleared = append(m.Cleared, id)
	return nil
}

// MockConnectionStore is an in-memory ConnectionStore
type MockConnectionStore struct {
	mu          sync.RWMutex
	connections map[string]*domain.Connection
}

// NewMockConnectionStore creates a new MockConnectionStore
func NewMockConnectionStore(connections ...*domain.Connection) *MockConnectionStore {
	m := &MockConnectionStore{connections: make(map[string]*domain.Connection)}
	for _, c := range connections {
		m.connections[c.ID] = c
	}
	return m
}

func (m *MockConnectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *MockConnectionStore) GetByUser(ctx context.Context, accountID, userUUID string) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.connections {
		if c.AccountID == accountID && c.UserUUID == userUUID {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockConnectionStore) Create(ctx context.Context, conn *domain.Connection) (*domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.connections {
		if c.AccountID == conn.AccountID && c.UserUUID == conn.UserUUID {
			return c, nil
		}
	}
	m.connections[conn.ID] = conn
	return conn, nil
}
