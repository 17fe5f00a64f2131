package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// MockTaskQueue is an in-memory FIFO TaskQueue
type MockTaskQueue struct {
	mu      sync.Mutex
	pending []*domain.Task
	tasks   map[string]*domain.Task

	Acked   []string
	Nacked  []string
	Batches int

	// PurgedBefore is the cutoff of the last PurgeTasks call
	PurgedBefore time.Time

	EnqueueFn func(task *domain.Task) error
}

func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{tasks: make(map[string]*domain.Task)}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if m.EnqueueFn != nil {
		if err := m.EnqueueFn(task); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, task)
	m.tasks[task.ID] = task
	return nil
}

func (m *MockTaskQueue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	m.mu.Lock()
	m.Batches++
	m.mu.Unlock()
	for _, t := range tasks {
		if err := m.Enqueue(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.pending {
		if !t.IsReady() {
			continue
		}
		m.pending = append(m.pending[:i], m.pending[i+1:]...)
		t.MarkProcessing()
		return t, nil
	}
	return nil, nil
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		t.MarkCompleted()
	}
	m.Acked = append(m.Acked, taskID)
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nacked = append(m.Nacked, taskID)
	t, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if t.CanRetry() {
		t.Retry(reason)
		m.pending = append(m.pending, t)
	} else {
		t.MarkFailed(reason)
	}
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (m *MockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &driven.QueueStats{}
	for _, t := range m.tasks {
		switch t.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (m *MockTaskQueue) PurgeTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PurgedBefore = cutoff
	var n int64
	for id, t := range m.tasks {
		if t.Status != domain.TaskStatusCompleted && t.Status != domain.TaskStatusFailed {
			continue
		}
		if t.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error { return nil }

func (m *MockTaskQueue) Close() error { return nil }

// Pending returns the queued tasks in order
func (m *MockTaskQueue) Pending() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Task(nil), m.pending...)
}
