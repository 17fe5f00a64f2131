package driven

import (
	"context"
	"time"
)

// IdempotencyStore holds write-once payload hashes
type IdempotencyStore interface {
	// Record inserts the hash for the scope.
	// Returns false when the same (scope, hash) already exists.
	Record(ctx context.Context, scope, hash string) (bool, error)

	// PurgeBefore deletes records created before the cutoff
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
