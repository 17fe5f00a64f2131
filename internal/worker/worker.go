package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driving"
)

// Worker consumes the task queue and dispatches each task by type: link syncs
// and provider sweeps to the orchestrator, replay runs to the replay service
// and purges to the idempotency guard.
type Worker struct {
	taskQueue    driven.TaskQueue
	orchestrator driving.SyncOrchestrator
	replay       driving.ReplayService
	purge        driving.PurgeService
	scheduler    driving.Scheduler
	logger       *slog.Logger

	concurrency    int
	dequeueTimeout time.Duration
	errorBackoff   time.Duration
	taskRetention  time.Duration
	now            func() time.Time

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue    driven.TaskQueue
	Orchestrator driving.SyncOrchestrator
	Replay       driving.ReplayService
	Purge        driving.PurgeService
	Scheduler    driving.Scheduler // optional; started and stopped with the worker
	Logger       *slog.Logger

	Concurrency    int           // number of concurrent task processors (default 1)
	DequeueTimeout time.Duration // wait per dequeue before re-checking stop (default 5s)
	TaskRetention  time.Duration // finished tasks older than this are purged (default 7d)
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}
	taskRetention := cfg.TaskRetention
	if taskRetention <= 0 {
		taskRetention = domain.DefaultTaskRetention
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		orchestrator:   cfg.Orchestrator,
		replay:         cfg.Replay,
		purge:          cfg.Purge,
		scheduler:      cfg.Scheduler,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		errorBackoff:   time.Second,
		taskRetention:  taskRetention,
		now:            time.Now,
	}
}

// Start launches the processing goroutines (and the scheduler, if any).
// It returns immediately; the worker runs until Stop or ctx cancellation.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting", "concurrency", w.concurrency, "dequeue_timeout", w.dequeueTimeout)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.processLoop(ctx, id)
		}(i)
	}
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()
	return nil
}

// Stop signals the processing goroutines and waits for in-flight tasks.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.logger.Info("worker stopped")
}

// Wait blocks until every processing goroutine has exited.
func (w *Worker) Wait() {
	<-w.doneCh
}

func (w *Worker) processLoop(ctx context.Context, id int) {
	logger := w.logger.With("worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(w.errorBackoff):
			case <-w.stopCh:
				return
			}
			continue
		}
		if task == nil {
			continue
		}

		w.ProcessTask(ctx, task)
	}
}

// ProcessTask runs one task and acks it, or nacks it for retry on error.
func (w *Worker) ProcessTask(ctx context.Context, task *domain.Task) {
	logger := w.logger.With("task_id", task.ID, "task_type", task.Type)
	start := time.Now()

	err := w.dispatch(ctx, task, logger)
	duration := time.Since(start)

	if err != nil {
		logger.Error("task failed", "duration", duration, "attempt", task.Attempts, "error", err)
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

func (w *Worker) dispatch(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	switch task.Type {
	case domain.TaskTypeSyncLink:
		linkID := task.LinkID()
		if linkID == "" {
			return fmt.Errorf("link_id not found in task payload")
		}
		result, err := w.orchestrator.SyncLink(ctx, linkID)
		if err != nil {
			return err
		}
		logger.Debug("link sync finished",
			"link_id", linkID,
			"skipped", result.Skipped,
			"logged_out", result.LoggedOut,
			"delivered", result.Stats.PointsDelivered,
		)
		return nil

	case domain.TaskTypeSyncProvider:
		provider := task.Provider()
		if !provider.IsValid() {
			return fmt.Errorf("invalid provider in task payload: %q", provider)
		}
		result, err := w.orchestrator.SyncProvider(ctx, provider)
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			logger.Warn("sweep finished with failures", "provider", provider, "eligible", result.Eligible, "failed", result.Failed)
		}
		return nil

	case domain.TaskTypeReplayUnprocessed:
		result, err := w.replay.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("replay finished", "ran", result.Ran, "delivered", result.Delivered, "failed", result.Failed)
		return nil

	case domain.TaskTypePurgeIdempotency:
		result, err := w.purge.Purge(ctx)
		if err != nil {
			return err
		}
		tasks, err := w.taskQueue.PurgeTasks(ctx, w.now().Add(-w.taskRetention))
		if err != nil {
			return fmt.Errorf("purge tasks: %w", err)
		}
		logger.Info("purge finished", "records", result.Records, "webhook_logs", result.WebhookLogs, "tasks", tasks)
		return nil

	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

// Health reports worker and queue health.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	health := Health{Running: w.running}
	w.mu.RUnlock()

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.Error = err.Error()
		return health
	}
	health.QueueHealth = true
	return health
}
