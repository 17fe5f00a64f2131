package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/patrickmn/go-cache"
)

// Verify interface compliance
var _ driven.FailureCounter = (*FailureCounter)(nil)

// FailureCounter keeps consecutive webhook failures in an in-process go-cache.
type FailureCounter struct {
	mu    sync.Mutex
	store *cache.Cache
	ttl   time.Duration
}

// NewFailureCounter creates a counter. A positive ttl expires idle counters.
func NewFailureCounter(ttl time.Duration) *FailureCounter {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &FailureCounter{
		store: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (c *FailureCounter) Increment(ctx context.Context, accountID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Add(accountID, int64(1), c.ttl); err == nil {
		return 1, nil
	}
	n, err := c.store.IncrementInt64(accountID, 1)
	if err != nil {
		// expired between Add and Increment
		c.store.Set(accountID, int64(1), c.ttl)
		return 1, nil
	}
	return n, nil
}

func (c *FailureCounter) Reset(ctx context.Context, accountID string) error {
	c.store.Delete(accountID)
	return nil
}

func (c *FailureCounter) Get(ctx context.Context, accountID string) (int64, error) {
	v, ok := c.store.Get(accountID)
	if !ok {
		return 0, nil
	}
	return v.(int64), nil
}
