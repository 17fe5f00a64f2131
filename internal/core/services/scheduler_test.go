package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven/mocks"
)

func dueSchedule(id string, taskType domain.TaskType, payload map[string]string) *domain.ScheduledTask {
	s := domain.NewScheduledTask(id, id, taskType, payload, time.Hour)
	s.NextRun = time.Now().Add(-time.Minute)
	return s
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Store: mocks.NewMockSchedulerStore(), TaskQueue: mocks.NewMockTaskQueue()})
	assert.Equal(t, 30*time.Second, s.interval)
	assert.Equal(t, time.Minute, s.lockTTL)
}

func TestScheduler_PollEnqueuesDue(t *testing.T) {
	store := mocks.NewMockSchedulerStore(
		dueSchedule("sweep-fitbit", domain.TaskTypeSyncProvider, map[string]string{"provider": "fitbit"}),
		dueSchedule("replay-unprocessed", domain.TaskTypeReplayUnprocessed, nil),
	)
	future := domain.NewScheduledTask("purge-idempotency", "purge", domain.TaskTypePurgeIdempotency, nil, time.Hour)
	require.NoError(t, store.SaveScheduledTask(context.Background(), future))

	queue := mocks.NewMockTaskQueue()
	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue})

	assert.Equal(t, 2, s.Poll(context.Background()))

	pending := queue.Pending()
	require.Len(t, pending, 2)
	types := []domain.TaskType{pending[0].Type, pending[1].Type}
	assert.ElementsMatch(t, []domain.TaskType{domain.TaskTypeSyncProvider, domain.TaskTypeReplayUnprocessed}, types)

	// schedules advanced, so a second poll is empty
	assert.Equal(t, 0, s.Poll(context.Background()))

	sweep, err := store.GetScheduledTask(context.Background(), "sweep-fitbit")
	require.NoError(t, err)
	assert.NotNil(t, sweep.LastRun)
	assert.True(t, sweep.NextRun.After(time.Now()))
}

func TestScheduler_PayloadCopied(t *testing.T) {
	store := mocks.NewMockSchedulerStore(
		dueSchedule("sweep-strava", domain.TaskTypeSyncProvider, map[string]string{"provider": "strava"}),
	)
	queue := mocks.NewMockTaskQueue()
	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue})

	s.Poll(context.Background())
	require.Len(t, queue.Pending(), 1)
	assert.Equal(t, domain.ProviderTypeStrava, queue.Pending()[0].Provider())
}

func TestScheduler_LockHeldSkipsPoll(t *testing.T) {
	store := mocks.NewMockSchedulerStore(dueSchedule("replay-unprocessed", domain.TaskTypeReplayUnprocessed, nil))
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld(SchedulerLockName, time.Minute)

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Lock: lock})
	assert.Equal(t, 0, s.Poll(context.Background()))
	assert.Empty(t, queue.Pending())
}

func TestScheduler_LockReleasedAfterPoll(t *testing.T) {
	store := mocks.NewMockSchedulerStore(dueSchedule("replay-unprocessed", domain.TaskTypeReplayUnprocessed, nil))
	lock := mocks.NewMockDistributedLock()
	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: mocks.NewMockTaskQueue(), Lock: lock})

	assert.Equal(t, 1, s.Poll(context.Background()))
	assert.False(t, lock.IsHeld(SchedulerLockName))
}

func TestScheduler_EnqueueFailureRecordsError(t *testing.T) {
	store := mocks.NewMockSchedulerStore(dueSchedule("replay-unprocessed", domain.TaskTypeReplayUnprocessed, nil))
	queue := mocks.NewMockTaskQueue()
	queue.EnqueueFn = func(task *domain.Task) error { return errors.New("queue down") }

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue})
	assert.Equal(t, 0, s.Poll(context.Background()))

	sched, err := store.GetScheduledTask(context.Background(), "replay-unprocessed")
	require.NoError(t, err)
	assert.Equal(t, "queue down", sched.LastError)
}

func TestScheduler_StoreFailure(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	store.GetDueFn = func() ([]*domain.ScheduledTask, error) { return nil, errors.New("db down") }

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: mocks.NewMockTaskQueue()})
	assert.Equal(t, 0, s.Poll(context.Background()))
}

func TestScheduler_SeedKeepsNextRun(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: mocks.NewMockTaskQueue()})

	defaults := domain.DefaultSchedulerConfig(domain.DefaultScheduleIntervals())
	require.NoError(t, s.Seed(ctx, defaults))

	all, err := s.ListScheduledTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	due := time.Now().Add(-time.Minute)
	replay, err := store.GetScheduledTask(ctx, "replay-unprocessed")
	require.NoError(t, err)
	replay.NextRun = due
	require.NoError(t, store.SaveScheduledTask(ctx, replay))

	require.NoError(t, s.Seed(ctx, domain.DefaultSchedulerConfig(domain.DefaultScheduleIntervals())))
	replay, err = store.GetScheduledTask(ctx, "replay-unprocessed")
	require.NoError(t, err)
	assert.WithinDuration(t, due, replay.NextRun, time.Millisecond)
}

func TestScheduler_SetEnabledAndTrigger(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore(dueSchedule("purge-idempotency", domain.TaskTypePurgeIdempotency, nil))
	queue := mocks.NewMockTaskQueue()
	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue})

	require.NoError(t, s.SetEnabled(ctx, "purge-idempotency", false))
	assert.Equal(t, 0, s.Poll(ctx))

	task, err := s.TriggerNow(ctx, "purge-idempotency")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypePurgeIdempotency, task.Type)
	assert.Len(t, queue.Pending(), 1)

	_, err = s.TriggerNow(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(s.SetEnabled(ctx, "missing", true), domain.ErrNotFound))
}

func TestScheduler_StartStop(t *testing.T) {
	store := mocks.NewMockSchedulerStore(dueSchedule("replay-unprocessed", domain.TaskTypeReplayUnprocessed, nil))
	queue := mocks.NewMockTaskQueue()
	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, PollInterval: 10 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(queue.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}
