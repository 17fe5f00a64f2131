package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "heka:lock:"

// Lock implements DistributedLock using Redis SET NX PX.
// Every acquisition stores a fresh token, so a holder whose TTL ran out can
// never release or extend the lock of whoever took it over, even within the
// same process.
type Lock struct {
	client  *redis.Client
	ownerID string

	mu     sync.Mutex
	tokens map[string]string
}

// NewLock creates a new Redis-backed distributed lock.
func NewLock(client *redis.Client) *Lock {
	return &Lock{
		client:  client,
		ownerID: generateOwnerID(),
		tokens:  make(map[string]string),
	}
}

// generateOwnerID identifies this process: hostname:pid
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s:%d", hostname, os.Getpid())
}

func (l *Lock) newToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return l.ownerID + ":" + hex.EncodeToString(b)
}

// Acquire takes the lock if nobody holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[name] = token
	l.mu.Unlock()
	return true, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release drops the lock if this holder still owns it.
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	_, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, token).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Extend pushes the expiry of a held lock forward.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("lock %s not held by this instance", name)
	}

	result, err := extendScript.Run(ctx, l.client, []string{lockPrefix + name}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if result == 0 {
		return fmt.Errorf("lock %s not held by this instance", name)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID returns the process identifier embedded in every lock token.
func (l *Lock) OwnerID() string {
	return l.ownerID
}
