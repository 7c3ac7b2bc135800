package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSNQuotesValues(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "sync",
		Password: `it's a secret`,
		Database: "health",
		SSLMode:  "disable",
	}
	assert.Equal(t, `host=db port=5432 user=sync password='it\'s a secret' dbname=health sslmode=disable`, c.GetDSN())

	c.Password = ""
	assert.NotContains(t, c.GetDSN(), "password=")
}

func TestLoadFromEnv_KeepsDefaultsForBadValues(t *testing.T) {
	t.Setenv("TESTDB_PORT", "not-a-port")
	t.Setenv("TESTDB_MAX_IDLE", "3")
	t.Setenv("TESTREDIS_ENABLED", "1")
	t.Setenv("TESTREDIS_DB", "4")
	t.Setenv("TESTMQTT_QOS", "7")
	t.Setenv("TESTMQTT_CLIENT_ID", "sync-2")

	db := DatabaseConfig{Port: 5432}
	db.LoadFromEnv("TESTDB")
	assert.Equal(t, 5432, db.Port)
	assert.Equal(t, 3, db.MaxIdle)

	r := RedisConfig{}
	r.LoadFromEnv("TESTREDIS")
	assert.True(t, r.Enabled)
	assert.Equal(t, 4, r.DB)

	m := MQTTConfig{QoS: 1}
	m.LoadFromEnv("TESTMQTT")
	assert.Equal(t, byte(1), m.QoS)
	assert.Equal(t, "sync-2", m.ClientID)
}
