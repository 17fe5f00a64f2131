package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockDistributedLock simulates TTL locks in memory.
// Hooks override the in-memory behaviour when set.
type MockDistributedLock struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Acquired counts successful acquisitions per lock name
	Acquired map[string]int

	AcquireFn func(name string, ttl time.Duration) (bool, error)
	ReleaseFn func(name string) error
	PingFn    func() error
}

// NewMockDistributedLock creates a new mock distributed lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		locks:    make(map[string]time.Time),
		Acquired: make(map[string]int),
	}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, held := m.locks[name]; held && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[name] = time.Now().Add(ttl)
	m.Acquired[name]++
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, held := m.locks[name]
	if !held || time.Now().After(expiry) {
		return fmt.Errorf("lock %s not held", name)
	}
	m.locks[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// IsHeld reports whether a lock is currently held (for assertions).
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, held := m.locks[name]
	return held && time.Now().Before(expiry)
}

// SetLockHeld simulates another instance holding the lock.
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[name] = time.Now().Add(ttl)
}

// MockFailureCounter is an in-memory FailureCounter
type MockFailureCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMockFailureCounter creates a new MockFailureCounter
func NewMockFailureCounter() *MockFailureCounter {
	return &MockFailureCounter{counts: make(map[string]int64)}
}

func (m *MockFailureCounter) Increment(ctx context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[accountID]++
	return m.counts[accountID], nil
}

func (m *MockFailureCounter) Reset(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[accountID] = 0
	return nil
}

func (m *MockFailureCounter) Get(ctx context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[accountID], nil
}
