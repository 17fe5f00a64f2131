package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heka.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ModeAll, cfg.Runtime.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Sync.LockTTL)
	assert.Equal(t, 300, cfg.Sync.FanoutSlice)
	assert.Equal(t, 500, cfg.Delivery.ChunkSize)
	assert.Equal(t, 5, cfg.Delivery.FailureThreshold)
	assert.Equal(t, "X-Heka-Signature", cfg.Delivery.SignatureHeader)
	assert.Equal(t, 3*time.Hour, cfg.Replay.LockTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Idempotency.Retention)
	assert.Equal(t, 10*time.Second, cfg.Providers.Timeout)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
runtime:
  mode: worker
database:
  url: postgres://file/heka
sync:
  lock_ttl: 2m
  intervals:
    strava: 1h
delivery:
  chunk_size: 250
providers:
  timeout: 4s
  fitbit:
    client_id: fb-client
`)
	t.Setenv("HEKA_DATABASE__URL", "postgres://env/heka")
	t.Setenv("HEKA_REDIS__URL", "redis://localhost:6379/0")
	t.Setenv("HEKA_DELIVERY__TIMEOUT", "3s")
	t.Setenv("HEKA_WORKER__CONCURRENCY", "8")
	t.Setenv("HEKA_PROVIDERS__STRAVA__VERIFY_TOKEN", "tok")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeWorker, cfg.Runtime.Mode)
	assert.Equal(t, "postgres://env/heka", cfg.Database.URL, "env overrides file")
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 2*time.Minute, cfg.Sync.LockTTL)
	assert.Equal(t, 250, cfg.Delivery.ChunkSize)
	assert.Equal(t, 3*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, "fb-client", cfg.Providers.Fitbit.ClientID)
	assert.Equal(t, 4*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, "tok", cfg.Providers.Strava.VerifyToken)

	// unset keys keep their defaults
	assert.Equal(t, 300, cfg.Sync.FanoutSlice)
	assert.Equal(t, 5, cfg.Delivery.FailureThreshold)

	intervals := cfg.ScheduleIntervals()
	assert.Equal(t, time.Hour, intervals.Providers[domain.ProviderTypeStrava])
	assert.Equal(t, 15*time.Minute, intervals.Providers[domain.ProviderTypeGoogleFit])
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("HEKA_DATABASE__URL", "postgres://env/heka")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/heka", cfg.Database.URL)
	assert.Equal(t, ModeAll, cfg.Runtime.Mode)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad mode", func(c *Config) { c.Runtime.Mode = "batch" }, true},
		{"no database", func(c *Config) { c.Database.URL = "" }, true},
		{"zero chunk size", func(c *Config) { c.Delivery.ChunkSize = 0 }, true},
		{"zero threshold", func(c *Config) { c.Delivery.FailureThreshold = 0 }, true},
		{"zero provider timeout", func(c *Config) { c.Providers.Timeout = 0 }, true},
		{"short key", func(c *Config) { c.Auth.EncryptionKey = "abcd" }, true},
		{"not hex", func(c *Config) { c.Auth.EncryptionKey = "zz" }, true},
		{"good key", func(c *Config) {
			c.Auth.EncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.URL = "postgres://localhost/heka"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEncryptionKey(t *testing.T) {
	cfg := Default()
	key, err := cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Nil(t, key)

	cfg.Auth.EncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	key, err = cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
	assert.Equal(t, byte(0x1f), key[31])
}

func TestEnvKey(t *testing.T) {
	k, v := envKey("HEKA_SYNC__INTERVALS__GOOGLE_FIT", "10m")
	assert.Equal(t, "sync.intervals.google_fit", k)
	assert.Equal(t, "10m", v)

	k, _ = envKey("HEKA_", "x")
	assert.Empty(t, k)
}
