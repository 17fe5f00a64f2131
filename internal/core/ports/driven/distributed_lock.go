package driven

import (
	"context"
	"time"
)

// DistributedLock provides named, TTL-bounded mutual exclusion across instances.
// It guards per-link syncs, the global replay run and the scheduler loop.
type DistributedLock interface {
	// Acquire tries to take the named lock without blocking.
	// Returns false when another holder owns it. The lock expires after ttl
	// even if the holder crashes.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops the named lock if this instance holds it.
	// Safe to call when the lock has already expired.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a held lock forward.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}

// FailureCounter tracks consecutive webhook failures per account in the shared cache
type FailureCounter interface {
	// Increment adds one failure and returns the new consecutive count.
	Increment(ctx context.Context, accountID string) (int64, error)

	// Reset sets the count back to zero.
	Reset(ctx context.Context, accountID string) error

	// Get returns the current count (zero when unset).
	Get(ctx context.Context, accountID string) (int64, error)
}
