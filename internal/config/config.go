// Package config loads runtime configuration from an optional YAML file and
// HEKA_-prefixed environment variables.
//
// Environment keys map onto the YAML tree by lower-casing and turning a double
// underscore into a level separator: HEKA_DELIVERY__CHUNK_SIZE sets
// delivery.chunk_size.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// EnvPrefix scopes the environment variables read by Load
const EnvPrefix = "HEKA_"

// Run modes
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Runtime     RuntimeConfig     `koanf:"runtime"`
	Database    DatabaseConfig    `koanf:"database"`
	Redis       RedisConfig       `koanf:"redis"`
	Auth        AuthConfig        `koanf:"auth"`
	Log         LogConfig         `koanf:"log"`
	Sync        SyncConfig        `koanf:"sync"`
	Delivery    DeliveryConfig    `koanf:"delivery"`
	Replay      ReplayConfig      `koanf:"replay"`
	Idempotency IdempotencyConfig `koanf:"idempotency"`
	Providers   ProvidersConfig   `koanf:"providers"`
	Notify      NotifyConfig      `koanf:"notify"`
	Worker      WorkerConfig      `koanf:"worker"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
}

type ServerConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`
}

type RuntimeConfig struct {
	// Mode is api, worker or all
	Mode string `koanf:"mode"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// RedisConfig is optional. Without a URL the service runs single-node:
// in-process locks and counters, PostgreSQL task queue.
type RedisConfig struct {
	URL string `koanf:"url"`
}

type AuthConfig struct {
	// JWTSecret signs admin bearer tokens. Admin routes reject every token when empty.
	JWTSecret string `koanf:"jwt_secret"`

	// EncryptionKey is a hex-encoded 32-byte AES key for OAuth tokens at rest
	EncryptionKey string `koanf:"encryption_key"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SyncConfig struct {
	LockTTL       time.Duration  `koanf:"lock_ttl"`
	FanoutSlice   int            `koanf:"fanout_slice"`
	PoolSize      int            `koanf:"pool_size"`
	PoolQueueSize int            `koanf:"pool_queue_size"`
	Intervals     SweepIntervals `koanf:"intervals"`
}

// SweepIntervals is the sweep cadence per pulled provider. Zero disables a sweep.
type SweepIntervals struct {
	GoogleFit time.Duration `koanf:"google_fit"`
	Fitbit    time.Duration `koanf:"fitbit"`
	Strava    time.Duration `koanf:"strava"`
}

type DeliveryConfig struct {
	ChunkSize        int           `koanf:"chunk_size"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold int           `koanf:"failure_threshold"`
	// FailureTTL expires idle consecutive-failure counters
	FailureTTL      time.Duration `koanf:"failure_ttl"`
	SignatureHeader string        `koanf:"signature_header"`
}

type ReplayConfig struct {
	Interval       time.Duration `koanf:"interval"`
	LockTTL        time.Duration `koanf:"lock_ttl"`
	BatchSize      int           `koanf:"batch_size"`
	MaxChunkPoints int           `koanf:"max_chunk_points"`
}

type IdempotencyConfig struct {
	Retention           time.Duration `koanf:"retention"`
	WebhookLogRetention time.Duration `koanf:"webhook_log_retention"`
	PurgeInterval       time.Duration `koanf:"purge_interval"`
}

type ProvidersConfig struct {
	// Timeout bounds every provider HTTP call
	Timeout   time.Duration `koanf:"timeout"`
	GoogleFit OAuthClient   `koanf:"google_fit"`
	Fitbit    FitbitClient  `koanf:"fitbit"`
	Strava    StravaClient  `koanf:"strava"`
}

type OAuthClient struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

type FitbitClient struct {
	ClientID         string `koanf:"client_id"`
	ClientSecret     string `koanf:"client_secret"`
	VerificationCode string `koanf:"verification_code"`
}

type StravaClient struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	VerifyToken  string `koanf:"verify_token"`
}

// NotifyConfig selects the operator notification sink. Without a project the
// notifications are only logged.
type NotifyConfig struct {
	PubSubProject string `koanf:"pubsub_project"`
	PubSubTopic   string `koanf:"pubsub_topic"`
}

type WorkerConfig struct {
	Concurrency    int           `koanf:"concurrency"`
	DequeueTimeout time.Duration `koanf:"dequeue_timeout"`
	// TaskRetention is how long finished task records are kept
	TaskRetention time.Duration `koanf:"task_retention"`
}

type SchedulerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	sweeps := domain.DefaultScheduleIntervals()
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxUploadBytes: 10 << 20,
		},
		Runtime: RuntimeConfig{Mode: ModeAll},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Sync: SyncConfig{
			LockTTL:       domain.DefaultSyncLockTTL,
			FanoutSlice:   domain.DefaultFanoutSlice,
			PoolSize:      32,
			PoolQueueSize: 1000,
			Intervals: SweepIntervals{
				GoogleFit: sweeps.Providers[domain.ProviderTypeGoogleFit],
				Fitbit:    sweeps.Providers[domain.ProviderTypeFitbit],
				Strava:    sweeps.Providers[domain.ProviderTypeStrava],
			},
		},
		Providers: ProvidersConfig{Timeout: 10 * time.Second},
		Delivery: DeliveryConfig{
			ChunkSize:        domain.DefaultChunkSize,
			Timeout:          10 * time.Second,
			FailureThreshold: domain.DefaultFailureThreshold,
			FailureTTL:       7 * 24 * time.Hour,
			SignatureHeader:  "X-Heka-Signature",
		},
		Replay: ReplayConfig{
			Interval:       sweeps.Replay,
			LockTTL:        3 * time.Hour,
			BatchSize:      100,
			MaxChunkPoints: 5000,
		},
		Idempotency: IdempotencyConfig{
			Retention:           domain.DefaultIdempotencyRetention,
			WebhookLogRetention: 48 * time.Hour,
			PurgeInterval:       sweeps.Purge,
		},
		Worker: WorkerConfig{
			Concurrency:    2,
			DequeueTimeout: 5 * time.Second,
			TaskRetention:  domain.DefaultTaskRetention,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			PollInterval: 30 * time.Second,
		},
	}
}

// Load reads the YAML file at path (skipped when empty) and then the HEKA_
// environment on top of Default.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey turns HEKA_SYNC__LOCK_TTL into sync.lock_ttl
func envKey(k, v string) (string, any) {
	k = strings.TrimPrefix(k, EnvPrefix)
	if k == "" {
		return "", nil
	}
	return strings.ReplaceAll(strings.ToLower(k), "__", "."), v
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	switch c.Runtime.Mode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		return fmt.Errorf("runtime.mode %q: must be api, worker or all", c.Runtime.Mode)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Delivery.ChunkSize <= 0 {
		return fmt.Errorf("delivery.chunk_size must be positive")
	}
	if c.Delivery.FailureThreshold <= 0 {
		return fmt.Errorf("delivery.failure_threshold must be positive")
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("providers.timeout must be positive")
	}
	if c.Auth.EncryptionKey != "" {
		if _, err := c.EncryptionKey(); err != nil {
			return err
		}
	}
	return nil
}

// EncryptionKey decodes auth.encryption_key. It returns nil when unset.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.Auth.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Auth.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("auth.encryption_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("auth.encryption_key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ScheduleIntervals returns the recurring task cadence
func (c *Config) ScheduleIntervals() domain.ScheduleIntervals {
	return domain.ScheduleIntervals{
		Providers: map[domain.ProviderType]time.Duration{
			domain.ProviderTypeGoogleFit: c.Sync.Intervals.GoogleFit,
			domain.ProviderTypeFitbit:    c.Sync.Intervals.Fitbit,
			domain.ProviderTypeStrava:    c.Sync.Intervals.Strava,
		},
		Replay: c.Replay.Interval,
		Purge:  c.Idempotency.PurgeInterval,
	}
}

// RedisEnabled reports whether a Redis URL is configured
func (c *Config) RedisEnabled() bool {
	return c.Redis.URL != ""
}
