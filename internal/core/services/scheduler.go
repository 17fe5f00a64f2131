package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driving"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// SchedulerLockName guards the due-task poll across instances
const SchedulerLockName = "scheduler"

// Scheduler turns recurring schedules (provider sweeps, replay, purge) into
// queue tasks. It runs on worker nodes; with a DistributedLock configured only
// one instance enqueues per poll.
type Scheduler struct {
	store     driven.SchedulerStore
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	interval time.Duration
	lockTTL  time.Duration
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Store     driven.SchedulerStore
	TaskQueue driven.TaskQueue
	Lock      driven.DistributedLock // optional
	Logger    *slog.Logger

	PollInterval time.Duration // default 30s
	LockTTL      time.Duration // default 2x PollInterval
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * interval
	}
	return &Scheduler{
		store:     cfg.Store,
		taskQueue: cfg.TaskQueue,
		lock:      cfg.Lock,
		logger:    logger,
		interval:  interval,
		lockTTL:   lockTTL,
	}
}

// Seed registers the given schedules. Existing schedules keep their next run.
func (s *Scheduler) Seed(ctx context.Context, schedules []*domain.ScheduledTask) error {
	for _, sched := range schedules {
		existing, err := s.store.GetScheduledTask(ctx, sched.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			sched.NextRun = existing.NextRun
			sched.LastRun = existing.LastRun
		}
		if err := s.store.SaveScheduledTask(ctx, sched); err != nil {
			return err
		}
		s.logger.Debug("schedule registered", "scheduled_id", sched.ID, "interval", sched.Interval)
	}
	return nil
}

// Start runs the poll loop in the background until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.Info("scheduler starting", "poll_interval", s.interval)
	go s.run(ctx)
	return nil
}

// Stop stops the poll loop and waits for the in-flight poll.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.running = false
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll enqueues every due schedule once and returns how many were enqueued.
func (s *Scheduler) Poll(ctx context.Context) int {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, SchedulerLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire scheduler lock", "error", err)
			return 0
		}
		if !acquired {
			s.logger.Debug("scheduler lock held elsewhere, skipping poll")
			return 0
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), SchedulerLockName); err != nil {
				s.logger.Warn("failed to release scheduler lock", "error", err)
			}
		}()
	}

	due, err := s.store.GetDueScheduledTasks(ctx)
	if err != nil {
		s.logger.Error("failed to list due schedules", "error", err)
		return 0
	}

	enqueued := 0
	for _, sched := range due {
		if !sched.IsDue() {
			continue
		}
		task := sched.NewTaskFromSchedule()
		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			s.logger.Error("failed to enqueue scheduled task", "scheduled_id", sched.ID, "error", err)
			_ = s.store.UpdateLastRun(ctx, sched.ID, err.Error())
			continue
		}
		enqueued++
		s.logger.Info("enqueued scheduled task", "scheduled_id", sched.ID, "task_id", task.ID, "task_type", task.Type)

		if err := s.store.UpdateLastRun(ctx, sched.ID, ""); err != nil {
			s.logger.Warn("failed to advance schedule", "scheduled_id", sched.ID, "error", err)
		}
	}
	return enqueued
}

// ListScheduledTasks lists every schedule.
func (s *Scheduler) ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	return s.store.ListScheduledTasks(ctx)
}

// SetEnabled toggles a schedule.
func (s *Scheduler) SetEnabled(ctx context.Context, id string, enabled bool) error {
	sched, err := s.store.GetScheduledTask(ctx, id)
	if err != nil {
		return err
	}
	sched.Enabled = enabled
	return s.store.SaveScheduledTask(ctx, sched)
}

// TriggerNow enqueues a schedule's task immediately without moving its next run.
func (s *Scheduler) TriggerNow(ctx context.Context, id string) (*domain.Task, error) {
	sched, err := s.store.GetScheduledTask(ctx, id)
	if err != nil {
		return nil, err
	}
	task := sched.NewTaskFromSchedule()
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("schedule triggered manually", "scheduled_id", sched.ID, "task_id", task.ID)
	return task, nil
}
