package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

var taskCols = []string{
	"id", "type", "payload", "status", "priority",
	"attempts", "max_attempts", "error", "created_at", "updated_at",
	"started_at", "completed_at", "scheduled_for",
}

func newTestQueue(t *testing.T) (*Queue, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewQueue(db), mock
}

func TestQueue_Enqueue(t *testing.T) {
	q, mock := newTestQueue(t)
	task := domain.NewSyncLinkTask("link-1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs(task.ID, "sync_link", []byte(`{"link_id":"link-1"}`), "pending", 10, 0, 3, "",
			task.CreatedAt, task.UpdatedAt, task.ScheduledFor).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Enqueue(context.Background(), task))
}

func TestQueue_EnqueueBatchRollsBackOnError(t *testing.T) {
	q, mock := newTestQueue(t)
	tasks := []*domain.Task{domain.NewReplayTask(), domain.NewPurgeTask()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := q.EnqueueBatch(context.Background(), tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), tasks[1].ID)
}

func TestQueue_DequeueClaimsReadyTask(t *testing.T) {
	q, mock := newTestQueue(t)
	created := time.Now().Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("pending", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(
			"task-1", "sync_provider", []byte(`{"provider":"fitbit"}`), "pending", 0,
			0, 3, "", created, created, nil, nil, created))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs("processing", sqlmock.AnyArg(), 1, "task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	task, err := q.DequeueWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskTypeSyncProvider, task.Type)
	assert.Equal(t, domain.ProviderTypeFitbit, task.Provider())
	assert.Equal(t, domain.TaskStatusProcessing, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.NotNil(t, task.StartedAt)
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q, mock := newTestQueue(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WillReturnRows(sqlmock.NewRows(taskCols))
	mock.ExpectRollback()

	task, err := q.DequeueWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestQueue_AckNotFound(t *testing.T) {
	q, mock := newTestQueue(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs("completed", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := q.Ack(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestQueue_Nack(t *testing.T) {
	created := time.Now().Add(-time.Minute)

	tests := []struct {
		name     string
		attempts int
		status   string
	}{
		{"retries with attempts left", 1, "pending"},
		{"fails when exhausted", 3, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, mock := newTestQueue(t)

			mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
				WithArgs("task-1").
				WillReturnRows(sqlmock.NewRows(taskCols).AddRow(
					"task-1", "replay_unprocessed", []byte(`null`), "processing", 0,
					tt.attempts, 3, "", created, created, created, nil, created))
			mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
				WithArgs(tt.status, "boom", sqlmock.AnyArg(), sqlmock.AnyArg(), "task-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, q.Nack(context.Background(), "task-1", "boom"))
		})
	}
}

func TestQueue_GetTaskNotFound(t *testing.T) {
	q, mock := newTestQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := q.GetTask(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestQueue_Stats(t *testing.T) {
	q, mock := newTestQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 4).
			AddRow("processing", 1).
			AddRow("failed", 2))

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.PendingCount)
	assert.Equal(t, int64(1), stats.ProcessingCount)
	assert.Equal(t, int64(0), stats.CompletedCount)
	assert.Equal(t, int64(2), stats.FailedCount)
}

func TestQueue_PurgeTasks(t *testing.T) {
	q, mock := newTestQueue(t)
	cutoff := time.Now().Add(-24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks")).
		WithArgs("completed", "failed", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := q.PurgeTasks(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
