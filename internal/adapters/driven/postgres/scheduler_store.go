package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SchedulerStore = (*SchedulerStore)(nil)

// SchedulerStore implements driven.SchedulerStore using PostgreSQL
type SchedulerStore struct {
	db *DB
}

// NewSchedulerStore creates a new SchedulerStore
func NewSchedulerStore(db *DB) *SchedulerStore {
	return &SchedulerStore{db: db}
}

const scheduledColumns = `id, name, type, payload, interval_ns, enabled, next_run, last_run, last_error`

func scanScheduledTask(row interface{ Scan(...any) error }) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var payload []byte
	var lastRun sql.NullTime
	var intervalNs int64

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Type,
		&payload,
		&intervalNs,
		&task.Enabled,
		&task.NextRun,
		&lastRun,
		&task.LastError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, err
		}
	}
	task.Interval = time.Duration(intervalNs)
	task.LastRun = TimePtr(lastRun)
	return &task, nil
}

// GetScheduledTask retrieves a scheduled task by ID
func (s *SchedulerStore) GetScheduledTask(ctx context.Context, id string) (*domain.ScheduledTask, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_tasks WHERE id = $1`
	return scanScheduledTask(s.db.QueryRowContext(ctx, query, id))
}

// ListScheduledTasks retrieves every scheduled task
func (s *SchedulerStore) ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_tasks ORDER BY next_run ASC`
	return s.list(ctx, query)
}

// SaveScheduledTask creates or updates a scheduled task.
// next_run of an existing row is kept so restarts do not postpone due sweeps.
func (s *SchedulerStore) SaveScheduledTask(ctx context.Context, task *domain.ScheduledTask) error {
	payload, err := jsonb(task.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO scheduled_tasks (id, name, type, payload, interval_ns, enabled, next_run, last_run, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			payload = EXCLUDED.payload,
			interval_ns = EXCLUDED.interval_ns,
			enabled = EXCLUDED.enabled
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.Name,
		string(task.Type),
		payload,
		int64(task.Interval),
		task.Enabled,
		task.NextRun,
		NullTime(task.LastRun),
		task.LastError,
	)
	return err
}

// GetDueScheduledTasks retrieves enabled tasks whose next run has passed
func (s *SchedulerStore) GetDueScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_tasks WHERE enabled AND next_run <= $1 ORDER BY next_run ASC`
	return s.list(ctx, query, time.Now())
}

// UpdateLastRun records a run and advances next_run by the stored interval
func (s *SchedulerStore) UpdateLastRun(ctx context.Context, id string, lastError string) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET last_run = $1, next_run = $1 + (interval_ns / 1000) * INTERVAL '1 microsecond', last_error = $2
		WHERE id = $3
	`, now, lastError, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SchedulerStore) list(ctx context.Context, query string, args ...any) ([]*domain.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.ScheduledTask
	for rows.Next() {
		task, err := scanScheduledTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
