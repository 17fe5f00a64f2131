package driven

import (
	"context"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// TaskQueue carries sync, replay and purge tasks from dispatchers to workers.
// Implementations use Redis streams (preferred) or Postgres (fallback).
type TaskQueue interface {
	// Enqueue adds a task to the queue.
	Enqueue(ctx context.Context, task *domain.Task) error

	// EnqueueBatch adds multiple tasks to the queue.
	EnqueueBatch(ctx context.Context, tasks []*domain.Task) error

	// DequeueWithTimeout retrieves the next ready task, waiting up to timeout.
	// Returns nil, nil when nothing arrived in time.
	DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error)

	// Ack acknowledges successful completion of a task.
	Ack(ctx context.Context, taskID string) error

	// Nack returns a failed task for retry with backoff, or marks it failed
	// once its attempts are exhausted.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// PurgeTasks removes completed and failed task records last updated
	// before cutoff and returns how many were removed.
	PurgeTasks(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`
}

// SchedulerStore persists recurring task configuration.
type SchedulerStore interface {
	// GetScheduledTask retrieves a scheduled task by ID
	GetScheduledTask(ctx context.Context, id string) (*domain.ScheduledTask, error)

	// ListScheduledTasks retrieves every scheduled task
	ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error)

	// SaveScheduledTask creates or updates a scheduled task
	SaveScheduledTask(ctx context.Context, task *domain.ScheduledTask) error

	// GetDueScheduledTasks retrieves enabled scheduled tasks whose next run has passed
	GetDueScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error)

	// UpdateLastRun records a run and advances next_run by the interval
	UpdateLastRun(ctx context.Context, id string, lastError string) error
}
