// Package memory provides single-node implementations of the coordination
// ports, used when no Redis is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/patrickmn/go-cache"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock implements DistributedLock on an in-process go-cache.
// Only valid when a single instance runs the workers.
type Lock struct {
	store *cache.Cache

	// mu makes check-then-delete and check-then-extend atomic
	mu     sync.Mutex
	tokens map[string]string
}

// NewLock creates an in-process lock.
func NewLock() *Lock {
	return &Lock{
		store:  cache.New(cache.NoExpiration, time.Minute),
		tokens: make(map[string]string),
	}
}

func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	token := domain.GenerateID()
	if err := l.store.Add(name, token, ttl); err != nil {
		return false, nil
	}
	l.tokens[name] = token
	return true, nil
}

func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	token, ok := l.tokens[name]
	delete(l.tokens, name)
	if !ok {
		return nil
	}
	if current, found := l.store.Get(name); found && current.(string) == token {
		l.store.Delete(name)
	}
	return nil
}

func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	token, ok := l.tokens[name]
	current, found := l.store.Get(name)
	if !ok || !found || current.(string) != token {
		return fmt.Errorf("lock %s not held by this instance", name)
	}
	l.store.Set(name, token, ttl)
	return nil
}

func (l *Lock) Ping(ctx context.Context) error {
	return nil
}
