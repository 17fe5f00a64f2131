package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.FailureCounter = (*FailureCounter)(nil)

const failurePrefix = "heka:webhook-failures:"

// FailureCounter keeps consecutive webhook failure counts in Redis.
// INCR is atomic, so concurrent deliveries for one account never lose an increment.
type FailureCounter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFailureCounter creates a counter. A positive ttl expires idle counters.
func NewFailureCounter(client *redis.Client, ttl time.Duration) *FailureCounter {
	return &FailureCounter{client: client, ttl: ttl}
}

func (c *FailureCounter) Increment(ctx context.Context, accountID string) (int64, error) {
	key := failurePrefix + accountID

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment failures for %s: %w", accountID, err)
	}
	return incr.Val(), nil
}

func (c *FailureCounter) Reset(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, failurePrefix+accountID).Err(); err != nil {
		return fmt.Errorf("reset failures for %s: %w", accountID, err)
	}
	return nil
}

func (c *FailureCounter) Get(ctx context.Context, accountID string) (int64, error) {
	n, err := c.client.Get(ctx, failurePrefix+accountID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get failures for %s: %w", accountID, err)
	}
	return n, nil
}
