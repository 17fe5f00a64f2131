package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.UnprocessedStore = (*UnprocessedStore)(nil)

// UnprocessedStore implements driven.UnprocessedStore using PostgreSQL
type UnprocessedStore struct {
	db *DB
}

// NewUnprocessedStore creates a new UnprocessedStore
func NewUnprocessedStore(db *DB) *UnprocessedStore {
	return &UnprocessedStore{db: db}
}

// Save persists an undelivered chunk
func (s *UnprocessedStore) Save(ctx context.Context, chunk *domain.UnprocessedChunk) error {
	payload, err := json.Marshal(chunk.Payload)
	if err != nil {
		return fmt.Errorf("marshal chunk %s: %w", chunk.ID, err)
	}

	query := `
		INSERT INTO unprocessed_chunks (id, connection_id, provider, payload, point_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		chunk.ID,
		chunk.ConnectionID,
		string(chunk.Provider),
		payload,
		chunk.Payload.Count(),
		chunk.CreatedAt,
	)
	return err
}

// ListRecentFirst pages chunks in created_at DESC, id DESC order
func (s *UnprocessedStore) ListRecentFirst(ctx context.Context, cursor *driven.UnprocessedCursor, limit int) ([]*domain.UnprocessedChunk, error) {
	query := `
		SELECT id, connection_id, provider, payload, created_at
		FROM unprocessed_chunks
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	args := []any{limit}
	if cursor != nil {
		query = `
			SELECT id, connection_id, provider, payload, created_at
			FROM unprocessed_chunks
			WHERE (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.UnprocessedChunk
	for rows.Next() {
		var c domain.UnprocessedChunk
		var payload []byte
		if err := rows.Scan(&c.ID, &c.ConnectionID, &c.Provider, &payload, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &c.Payload); err != nil {
			return nil, fmt.Errorf("decode chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// UpdatePayload replaces the payload of a partially replayed chunk
func (s *UnprocessedStore) UpdatePayload(ctx context.Context, id string, payload domain.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chunk %s: %w", id, err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE unprocessed_chunks SET payload = $2, point_count = $3 WHERE id = $1`,
		id, data, payload.Count())
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

// Delete removes a chunk. Deleting a missing chunk is not an error.
func (s *UnprocessedStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM unprocessed_chunks WHERE id = $1`, id)
	return err
}

// Count returns the number of stored chunks
func (s *UnprocessedStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unprocessed_chunks`).Scan(&n)
	return n, err
}
