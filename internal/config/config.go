package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wisefido-health-sync/common/config"
	"wisefido-health-sync/internal/units"
)

// Config is the health sync service configuration.
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Log struct {
		Level  string
		Format string
	}

	HTTP struct {
		Addr string
	}

	// Health data source
	Provider struct {
		Backend string // "postgres" or "memory"
	}

	// Remote persistence service
	Remote struct {
		Backend   string // "postgrest", "postgres" or "memory"
		BaseURL   string
		APIKey    string
		OwnerID   string // user_id stamped on every uploaded row
		BatchSize int
		Timeout   time.Duration
	}

	// Local key/value store (checkpoint + cooldown ledger)
	Store struct {
		Backend string // "badger" or "redis"
		Path    string // badger directory, empty = in-memory
	}

	Sync struct {
		FirstSyncDays       int
		Interval            time.Duration
		CheckInterval       time.Duration
		SampleLimit         int
		WorkoutLookbackDays int
		BaselineDays        int
		QueryTimeout        time.Duration
		ExtractParallelism  int
		EventStream         string
	}

	Notify struct {
		Backend     string // "desktop", "mqtt" or "log"
		TopicPrefix string
	}

	// Remote dashboard critical alerts
	Signals struct {
		Enabled   bool
		BaseURL   string
		UserEmail string
		CacheTTL  time.Duration
	}

	Import struct {
		UndatedRows string // "now" or "skip"
		Timezone    string
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "health",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-health-sync",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Provider.Backend = getEnv("PROVIDER_BACKEND", "postgres")

	cfg.Remote.Backend = getEnv("REMOTE_BACKEND", "postgrest")
	cfg.Remote.BaseURL = getEnv("REMOTE_BASE_URL", "")
	cfg.Remote.APIKey = getEnv("REMOTE_API_KEY", "")
	cfg.Remote.OwnerID = getEnv("REMOTE_OWNER_ID", "")
	cfg.Remote.BatchSize = parseInt(getEnv("REMOTE_BATCH_SIZE", "500"), 500)
	cfg.Remote.Timeout = parseDuration(getEnv("REMOTE_TIMEOUT", "120s"), 120*time.Second)

	cfg.Store.Backend = getEnv("STORE_BACKEND", "badger")
	cfg.Store.Path = getEnv("STORE_PATH", "./data/kv")

	cfg.Sync.FirstSyncDays = parseInt(getEnv("SYNC_FIRST_DAYS", "730"), 730)
	cfg.Sync.Interval = parseDuration(getEnv("SYNC_INTERVAL", "1h"), time.Hour)
	cfg.Sync.CheckInterval = parseDuration(getEnv("SYNC_CHECK_INTERVAL", "2h"), 2*time.Hour)
	cfg.Sync.SampleLimit = parseInt(getEnv("SYNC_SAMPLE_LIMIT", "5000"), 5000)
	cfg.Sync.WorkoutLookbackDays = parseInt(getEnv("SYNC_WORKOUT_LOOKBACK_DAYS", "730"), 730)
	cfg.Sync.BaselineDays = parseInt(getEnv("SYNC_BASELINE_DAYS", "7"), 7)
	cfg.Sync.QueryTimeout = parseDuration(getEnv("SYNC_QUERY_TIMEOUT", "30s"), 30*time.Second)
	cfg.Sync.ExtractParallelism = parseInt(getEnv("SYNC_EXTRACT_PARALLELISM", "4"), 4)
	cfg.Sync.EventStream = getEnv("SYNC_EVENT_STREAM", "health:sync:events")

	cfg.Notify.Backend = getEnv("NOTIFY_BACKEND", "log")
	cfg.Notify.TopicPrefix = getEnv("NOTIFY_TOPIC_PREFIX", "health/alerts")

	cfg.Signals.Enabled = getEnv("SIGNALS_ENABLED", "false") == "true"
	cfg.Signals.BaseURL = getEnv("API_BASE_URL", "")
	cfg.Signals.UserEmail = getEnv("USER_EMAIL", "")
	cfg.Signals.CacheTTL = parseDuration(getEnv("SIGNALS_CACHE_TTL", "5m"), 5*time.Minute)

	cfg.Import.UndatedRows = getEnv("IMPORT_UNDATED_ROWS", "now")
	cfg.Import.Timezone = getEnv("TZ_NAME", "Local")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Provider.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported provider backend: %s", c.Provider.Backend)
	}

	switch c.Remote.Backend {
	case "postgrest":
		if c.Remote.BaseURL == "" {
			return fmt.Errorf("REMOTE_BASE_URL is required for the postgrest backend")
		}
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported remote backend: %s", c.Remote.Backend)
	}

	switch c.Store.Backend {
	case "badger":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("STORE_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}

	switch c.Notify.Backend {
	case "desktop", "mqtt", "log":
	default:
		return fmt.Errorf("unsupported notify backend: %s", c.Notify.Backend)
	}

	switch c.Import.UndatedRows {
	case "now", "skip":
	default:
		return fmt.Errorf("unsupported IMPORT_UNDATED_ROWS value: %s", c.Import.UndatedRows)
	}

	if c.Remote.BatchSize <= 0 {
		return fmt.Errorf("REMOTE_BATCH_SIZE must be positive")
	}
	if c.Sync.SampleLimit <= 0 || c.Sync.BaselineDays <= 0 || c.Sync.FirstSyncDays <= 0 {
		return fmt.Errorf("sync limits must be positive")
	}
	if c.Sync.ExtractParallelism <= 0 {
		c.Sync.ExtractParallelism = 1
	}
	return nil
}

// Location resolves Import.Timezone. "Local" and unknown names map to the
// host zone under its IANA name, so it can be handed to the database.
func (c *Config) Location() *time.Location {
	if c.Import.Timezone == "" || c.Import.Timezone == "Local" {
		return units.LocalLocation()
	}
	loc, err := time.LoadLocation(c.Import.Timezone)
	if err != nil {
		return units.LocalLocation()
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
