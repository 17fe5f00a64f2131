package domain

import "sync"

// Backend names reported by RuntimeConfig
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendPubSub   = "pubsub"
	BackendLog      = "log"
)

// RuntimeConfig records which backends were selected at startup.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	Mode           string
	QueueBackend   string
	LockBackend    string
	CounterBackend string

	// Dynamic: the notifier can fall back to logging after startup
	notifierBackend string
}

// NewRuntimeConfig creates a RuntimeConfig for the given run mode and backends
func NewRuntimeConfig(mode, queue, lock, counter string) *RuntimeConfig {
	return &RuntimeConfig{
		Mode:            mode,
		QueueBackend:    queue,
		LockBackend:     lock,
		CounterBackend:  counter,
		notifierBackend: BackendLog,
	}
}

// NotifierBackend returns the active notification sink
func (c *RuntimeConfig) NotifierBackend() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifierBackend
}

// SetNotifierBackend updates the active notification sink
func (c *RuntimeConfig) SetNotifierBackend(backend string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifierBackend = backend
}

// SharedLocks reports whether sync and replay locks hold across processes
func (c *RuntimeConfig) SharedLocks() bool {
	return c.LockBackend != BackendMemory
}

// SharedCounters reports whether webhook failure counts are shared across processes
func (c *RuntimeConfig) SharedCounters() bool {
	return c.CounterBackend != BackendMemory
}

// RuntimeStatus is the serialisable view of RuntimeConfig
type RuntimeStatus struct {
	Mode     string `json:"mode"`
	Queue    string `json:"queue"`
	Lock     string `json:"lock"`
	Counter  string `json:"counter"`
	Notifier string `json:"notifier"`
}

// Status returns a snapshot for the version endpoint
func (c *RuntimeConfig) Status() RuntimeStatus {
	return RuntimeStatus{
		Mode:     c.Mode,
		Queue:    c.QueueBackend,
		Lock:     c.LockBackend,
		Counter:  c.CounterBackend,
		Notifier: c.NotifierBackend(),
	}
}
