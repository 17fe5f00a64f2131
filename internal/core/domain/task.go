package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.New().String()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeSyncProvider sweeps every eligible link of a provider
	TaskTypeSyncProvider TaskType = "sync_provider"
	// TaskTypeSyncLink syncs one provider link
	TaskTypeSyncLink TaskType = "sync_link"
	// TaskTypeReplayUnprocessed redrives the unprocessed chunk store
	TaskTypeReplayUnprocessed TaskType = "replay_unprocessed"
	// TaskTypePurgeIdempotency sweeps expired idempotency records, debug logs
	// and finished task records
	TaskTypePurgeIdempotency TaskType = "purge_idempotency"
)

// DefaultTaskRetention is how long finished task records are kept
const DefaultTaskRetention = 7 * 24 * time.Hour

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	ID   string   `json:"id"`
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For sync_provider: {"provider": "google_fit"}
	// For sync_link: {"link_id": "..."}
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Error       string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewSyncProviderTask creates a sweep task for one provider
func NewSyncProviderTask(provider ProviderType) *Task {
	return NewTask(TaskTypeSyncProvider, map[string]string{
		"provider": string(provider),
	})
}

// NewSyncLinkTask creates a task to sync one provider link.
// Link syncs are triggered by users (connect, webhooks), so they jump the sweep queue.
func NewSyncLinkTask(linkID string) *Task {
	t := NewTask(TaskTypeSyncLink, map[string]string{
		"link_id": linkID,
	})
	t.Priority = 10
	return t
}

// NewReplayTask creates a replay task
func NewReplayTask() *Task {
	return NewTask(TaskTypeReplayUnprocessed, nil)
}

// NewPurgeTask creates an idempotency purge task
func NewPurgeTask() *Task {
	return NewTask(TaskTypePurgeIdempotency, nil)
}

// LinkID extracts the link_id from the payload
func (t *Task) LinkID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["link_id"]
}

// Provider extracts the provider from the payload
func (t *Task) Provider() ProviderType {
	if t.Payload == nil {
		return ""
	}
	return ProviderType(t.Payload["provider"])
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	t.Status = TaskStatusFailed
	t.UpdatedAt = time.Now()
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// 1s, 2s, 4s, ... capped at 5 minutes
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}

// TaskResult represents the outcome of processing a task
type TaskResult struct {
	TaskID      string        `json:"task_id"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	ItemsCount  int           `json:"items_count,omitempty"`
	ErrorsCount int           `json:"errors_count,omitempty"`
}

// ScheduledTask represents a recurring task configuration
type ScheduledTask struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     TaskType          `json:"type"`
	Payload  map[string]string `json:"payload,omitempty"`
	Interval time.Duration     `json:"interval"`
	Enabled  bool              `json:"enabled"`

	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   time.Time  `json:"next_run"`
	LastError string     `json:"last_error,omitempty"`
}

// NewScheduledTask creates a new scheduled task
func NewScheduledTask(id, name string, taskType TaskType, payload map[string]string, interval time.Duration) *ScheduledTask {
	return &ScheduledTask{
		ID:       id,
		Name:     name,
		Type:     taskType,
		Payload:  payload,
		Interval: interval,
		Enabled:  true,
		NextRun:  time.Now().Add(interval),
	}
}

// IsDue returns true if the scheduled task should be triggered
func (s *ScheduledTask) IsDue() bool {
	return s.Enabled && !time.Now().Before(s.NextRun)
}

// UpdateNextRun calculates the next run time after execution
func (s *ScheduledTask) UpdateNextRun() {
	now := time.Now()
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
}

// NewTaskFromSchedule materialises a queue task from a schedule
func (s *ScheduledTask) NewTaskFromSchedule() *Task {
	payload := make(map[string]string, len(s.Payload))
	for k, v := range s.Payload {
		payload[k] = v
	}
	return NewTask(s.Type, payload)
}

// ScheduleIntervals configures the default recurring tasks
type ScheduleIntervals struct {
	Providers map[ProviderType]time.Duration
	Replay    time.Duration
	Purge     time.Duration
}

// DefaultScheduleIntervals returns the built-in sweep cadence
func DefaultScheduleIntervals() ScheduleIntervals {
	return ScheduleIntervals{
		Providers: map[ProviderType]time.Duration{
			ProviderTypeGoogleFit: 15 * time.Minute,
			ProviderTypeFitbit:    time.Hour,
			ProviderTypeStrava:    6 * time.Hour,
		},
		Replay: time.Hour,
		Purge:  24 * time.Hour,
	}
}

// DefaultSchedulerConfig returns the recurring tasks for the given intervals.
// A zero interval disables that schedule.
func DefaultSchedulerConfig(intervals ScheduleIntervals) []*ScheduledTask {
	var tasks []*ScheduledTask
	for _, provider := range PulledProviders() {
		interval := intervals.Providers[provider]
		if interval <= 0 {
			continue
		}
		tasks = append(tasks, NewScheduledTask(
			"sweep-"+string(provider),
			"Sweep "+string(provider),
			TaskTypeSyncProvider,
			map[string]string{"provider": string(provider)},
			interval,
		))
	}
	if intervals.Replay > 0 {
		tasks = append(tasks, NewScheduledTask("replay-unprocessed", "Replay unprocessed chunks", TaskTypeReplayUnprocessed, nil, intervals.Replay))
	}
	if intervals.Purge > 0 {
		tasks = append(tasks, NewScheduledTask("purge-idempotency", "Purge idempotency log", TaskTypePurgeIdempotency, nil, intervals.Purge))
	}
	return tasks
}
