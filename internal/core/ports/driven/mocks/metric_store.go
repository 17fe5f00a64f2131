package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// MockMetricStore records delivery metrics in memory
type MockMetricStore struct {
	mu      sync.Mutex
	Metrics []*domain.DataSyncMetric
}

func NewMockMetricStore() *MockMetricStore {
	return &MockMetricStore{}
}

func (m *MockMetricStore) RecordSyncMetrics(ctx context.Context, metrics []*domain.DataSyncMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metrics = append(m.Metrics, metrics...)
	return nil
}

// Count returns the number of recorded metrics
func (m *MockMetricStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Metrics)
}

// MockWebhookLogStore records debug webhook logs in memory
type MockWebhookLogStore struct {
	mu      sync.Mutex
	Logs    []*domain.WebhookLog
	Cutoffs []time.Time
}

func NewMockWebhookLogStore() *MockWebhookLogStore {
	return &MockWebhookLogStore{}
}

func (m *MockWebhookLogStore) Save(ctx context.Context, log *domain.WebhookLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, log)
	return nil
}

func (m *MockWebhookLogStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cutoffs = append(m.Cutoffs, cutoff)
	var kept []*domain.WebhookLog
	var purged int64
	for _, l := range m.Logs {
		if l.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, l)
	}
	m.Logs = kept
	return purged, nil
}

// MockHealthDataStore records stored payloads in memory
type MockHealthDataStore struct {
	mu       sync.Mutex
	Payloads []domain.Payload
}

func NewMockHealthDataStore() *MockHealthDataStore {
	return &MockHealthDataStore{}
}

func (m *MockHealthDataStore) SaveEntries(ctx context.Context, connectionID string, provider domain.ProviderType, payload domain.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payloads = append(m.Payloads, payload)
	return nil
}

// MockIdempotencyStore is an in-memory write-once hash log
type MockIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]time.Time
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{records: make(map[string]time.Time)}
}

func (m *MockIdempotencyStore) Record(ctx context.Context, scope, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope + "|" + hash
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = time.Now()
	return true, nil
}

func (m *MockIdempotencyStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for k, created := range m.records {
		if created.Before(cutoff) {
			delete(m.records, k)
			purged++
		}
	}
	return purged, nil
}

// Backdate shifts every record's creation time into the past (for retention tests)
func (m *MockIdempotencyStore) Backdate(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, created := range m.records {
		m.records[k] = created.Add(-d)
	}
}

// Len returns the number of stored records
func (m *MockIdempotencyStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
