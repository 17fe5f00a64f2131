package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// MockSchedulerStore is an in-memory SchedulerStore
type MockSchedulerStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.ScheduledTask

	GetDueFn func() ([]*domain.ScheduledTask, error)
}

func NewMockSchedulerStore(tasks ...*domain.ScheduledTask) *MockSchedulerStore {
	m := &MockSchedulerStore{tasks: make(map[string]*domain.ScheduledTask)}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *MockSchedulerStore) GetScheduledTask(ctx context.Context, id string) (*domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockSchedulerStore) ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockSchedulerStore) SaveScheduledTask(ctx context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *MockSchedulerStore) GetDueScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	if m.GetDueFn != nil {
		return m.GetDueFn()
	}
	all, _ := m.ListScheduledTasks(ctx)
	var due []*domain.ScheduledTask
	for _, t := range all {
		if t.IsDue() {
			due = append(due, t)
		}
	}
	return due, nil
}

func (m *MockSchedulerStore) UpdateLastRun(ctx context.Context, id string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.UpdateNextRun()
	t.LastError = lastError
	return nil
}
