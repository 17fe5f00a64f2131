package postgres

import (
	"context"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore implements driven.IdempotencyStore using PostgreSQL.
// The (scope, hash) primary key makes concurrent claims race-free.
type IdempotencyStore struct {
	db *DB
}

// NewIdempotencyStore creates a new IdempotencyStore
func NewIdempotencyStore(db *DB) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// Record inserts the hash; false means it was already present
func (s *IdempotencyStore) Record(ctx context.Context, scope, hash string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (scope, hash, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope, hash) DO NOTHING
	`, scope, hash, time.Now())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PurgeBefore deletes records created before the cutoff
func (s *IdempotencyStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
