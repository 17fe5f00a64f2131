package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*LeaseLock)(nil)

// LeaseLock implements DistributedLock with rows in the locks table.
// A row whose expires_at has passed may be taken over by anyone, so a
// crashed holder never blocks a link for longer than the TTL. Unlike
// session-scoped advisory locks, leases survive connection pooling.
type LeaseLock struct {
	db  *DB
	now func() time.Time

	mu     sync.Mutex
	owners map[string]string
}

// NewLeaseLock creates a lease lock on the locks table.
func NewLeaseLock(db *DB) *LeaseLock {
	return &LeaseLock{
		db:     db,
		now:    time.Now,
		owners: make(map[string]string),
	}
}

// Acquire inserts the lease or takes over an expired one.
func (l *LeaseLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	owner := domain.GenerateID()
	now := l.now()

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO locks (name, owner, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
		WHERE locks.expires_at <= $4
	`, name, owner, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if n == 0 {
		return false, nil
	}

	l.mu.Lock()
	l.owners[name] = owner
	l.mu.Unlock()
	return true, nil
}

// Release deletes the lease if this holder still owns it.
func (l *LeaseLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	owner, ok := l.owners[name]
	delete(l.owners, name)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if _, err := l.db.ExecContext(ctx, `DELETE FROM locks WHERE name = $1 AND owner = $2`, name, owner); err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

// Extend pushes expires_at forward while the lease is still held.
func (l *LeaseLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	owner, ok := l.owners[name]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("lease %s not held by this instance", name)
	}

	now := l.now()
	result, err := l.db.ExecContext(ctx, `
		UPDATE locks SET expires_at = $3
		WHERE name = $1 AND owner = $2 AND expires_at > $4
	`, name, owner, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("extend lease %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("extend lease %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("lease %s not held by this instance", name)
	}
	return nil
}

// Ping checks if the database is reachable.
func (l *LeaseLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
