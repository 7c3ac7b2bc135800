package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "http://localhost:3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Provider.Backend)
	assert.Equal(t, "postgrest", cfg.Remote.Backend)
	assert.Equal(t, 500, cfg.Remote.BatchSize)
	assert.Equal(t, 120*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, 730, cfg.Sync.FirstSyncDays)
	assert.Equal(t, time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 2*time.Hour, cfg.Sync.CheckInterval)
	assert.Equal(t, 5000, cfg.Sync.SampleLimit)
	assert.Equal(t, 7, cfg.Sync.BaselineDays)
	assert.Equal(t, 30*time.Second, cfg.Sync.QueryTimeout)
	assert.Equal(t, "log", cfg.Notify.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Signals.CacheTTL)
	assert.Equal(t, "now", cfg.Import.UndatedRows)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REMOTE_BACKEND", "postgres")
	t.Setenv("REMOTE_BATCH_SIZE", "100")
	t.Setenv("SYNC_INTERVAL", "15m")
	t.Setenv("SYNC_BASELINE_DAYS", "14")
	t.Setenv("NOTIFY_BACKEND", "mqtt")
	t.Setenv("IMPORT_UNDATED_ROWS", "skip")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Remote.Backend)
	assert.Equal(t, 100, cfg.Remote.BatchSize)
	assert.Equal(t, 15*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 14, cfg.Sync.BaselineDays)
	assert.Equal(t, "mqtt", cfg.Notify.Backend)
	assert.Equal(t, "skip", cfg.Import.UndatedRows)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", "memory")
	t.Setenv("SYNC_QUERY_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Sync.QueryTimeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", "memory")

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown provider backend", func(c *Config) { c.Provider.Backend = "healthkit" }},
		{"unknown remote backend", func(c *Config) { c.Remote.Backend = "ftp" }},
		{"postgrest without url", func(c *Config) { c.Remote.Backend = "postgrest"; c.Remote.BaseURL = "" }},
		{"redis store without redis", func(c *Config) { c.Store.Backend = "redis"; c.Redis.Enabled = false }},
		{"unknown notify backend", func(c *Config) { c.Notify.Backend = "sms" }},
		{"unknown undated policy", func(c *Config) { c.Import.UndatedRows = "yesterday" }},
		{"zero batch size", func(c *Config) { c.Remote.BatchSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	assert.Equal(t, "test-value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default-value", getEnv("NON_EXISTENT_VAR", "default-value"))
}

func TestLoad_ConnectionBlocks(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", "memory")
	t.Setenv("DB_NAME", "vitals")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("MQTT_QOS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vitals", cfg.Database.Database)
	assert.Contains(t, cfg.Database.GetDSN(), "dbname=vitals")
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, byte(2), cfg.MQTT.QoS)
	assert.Equal(t, "wisefido-health-sync", cfg.MQTT.ClientID)
}

func TestLocation_LocalResolvesToZoneName(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "http://localhost:3000")
	t.Setenv("TZ", "Australia/Sydney")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Local", cfg.Import.Timezone)
	assert.Equal(t, "Australia/Sydney", cfg.Location().String())

	cfg.Import.Timezone = "Asia/Kolkata"
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())

	cfg.Import.Timezone = "Not/AZone"
	assert.Equal(t, "Australia/Sydney", cfg.Location().String())
}
