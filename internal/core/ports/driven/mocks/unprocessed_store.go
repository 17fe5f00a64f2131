package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// MockUnprocessedStore is an in-memory UnprocessedStore
type MockUnprocessedStore struct {
	mu     sync.Mutex
	chunks map[string]*domain.UnprocessedChunk

	// Saved records chunks in the order they were persisted
	Saved   []*domain.UnprocessedChunk
	Deleted []string

	SaveFn          func(chunk *domain.UnprocessedChunk) error
	UpdatePayloadFn func(id string, payload domain.Payload) error
}

// NewMockUnprocessedStore creates a new MockUnprocessedStore
func NewMockUnprocessedStore() *MockUnprocessedStore {
	return &MockUnprocessedStore{chunks: make(map[string]*domain.UnprocessedChunk)}
}

func (m *MockUnprocessedStore) Save(ctx context.Context, chunk *domain.UnprocessedChunk) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(chunk); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	m.chunks[chunk.ID] = chunk
	m.Saved = append(m.Saved, chunk)
	return nil
}

func (m *MockUnprocessedStore) ListRecentFirst(ctx context.Context, cursor *driven.UnprocessedCursor, limit int) ([]*domain.UnprocessedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*domain.UnprocessedChunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	var out []*domain.UnprocessedChunk
	for _, c := range all {
		if cursor != nil {
			if c.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
			if c.CreatedAt.Equal(cursor.CreatedAt) && c.ID >= cursor.ID {
				continue
			}
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockUnprocessedStore) UpdatePayload(ctx context.Context, id string, payload domain.Payload) error {
	if m.UpdatePayloadFn != nil {
		if err := m.UpdatePayloadFn(id, payload); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Payload = payload
	return nil
}

func (m *MockUnprocessedStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, id)
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockUnprocessedStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.chunks)), nil
}

// Remaining returns the IDs still stored
func (m *MockUnprocessedStore) Remaining() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.chunks))
	for id := range m.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
