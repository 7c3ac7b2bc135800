package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig is a PostgreSQL connection block.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig is a Redis connection block.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// MQTTConfig is an MQTT broker connection block.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN returns the lib/pq keyword/value connection string. Values are
// quoted, so passwords may contain spaces and quotes.
func (c *DatabaseConfig) GetDSN() string {
	pairs := []struct{ key, value string }{
		{"host", c.Host},
		{"port", strconv.Itoa(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.Database},
		{"sslmode", c.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+dsnValue(p.value))
	}
	return strings.Join(parts, " ")
}

func dsnValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// LoadFromEnv applies <prefix>_HOST, _PORT, _USER, _PASSWORD, _NAME,
// _SSLMODE, _MAX_CONNS and _MAX_IDLE when set.
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	e := env(prefix)
	e.str("HOST", &c.Host)
	e.int("PORT", &c.Port)
	e.str("USER", &c.User)
	e.str("PASSWORD", &c.Password)
	e.str("NAME", &c.Database)
	e.str("SSLMODE", &c.SSLMode)
	e.int("MAX_CONNS", &c.MaxConns)
	e.int("MAX_IDLE", &c.MaxIdle)
}

// LoadFromEnv applies <prefix>_ENABLED, _ADDR, _PASSWORD and _DB when set.
func (c *RedisConfig) LoadFromEnv(prefix string) {
	e := env(prefix)
	e.bool("ENABLED", &c.Enabled)
	e.str("ADDR", &c.Addr)
	e.str("PASSWORD", &c.Password)
	e.int("DB", &c.DB)
}

// LoadFromEnv applies <prefix>_BROKER, _CLIENT_ID, _USERNAME, _PASSWORD and
// _QOS when set. A QoS outside 0..2 is ignored.
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	e := env(prefix)
	e.str("BROKER", &c.Broker)
	e.str("CLIENT_ID", &c.ClientID)
	e.str("USERNAME", &c.Username)
	e.str("PASSWORD", &c.Password)

	qos := int(c.QoS)
	e.int("QOS", &qos)
	if qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

// env reads variables named <prefix>_<key>. Unset, empty and malformed
// values leave the destination untouched.
type env string

func (e env) lookup(key string) (string, bool) {
	v := os.Getenv(fmt.Sprintf("%s_%s", string(e), key))
	return v, v != ""
}

func (e env) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e env) int(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (e env) bool(key string, dst *bool) {
	if v, ok := e.lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
