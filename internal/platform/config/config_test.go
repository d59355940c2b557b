package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STREAK_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("PLATFORM_FEE_BPS", "")
	t.Setenv("ENVIRONMENT", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, 1000, cfg.Billing.PlatformFeeBPS)
	assert.Equal(t, 24*time.Hour, cfg.Billing.DedupeTTL)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STREAK_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PLATFORM_FEE_BPS", "250")
	t.Setenv("WEBHOOK_DEDUPE_TTL", "2h")
	t.Setenv("REQUEST_TIMEOUT", "bogus")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 250, cfg.Billing.PlatformFeeBPS)
	assert.Equal(t, 2*time.Hour, cfg.Billing.DedupeTTL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestValidate(t *testing.T) {
	cfg := FromEnv()
	cfg.Billing.PlatformFeeBPS = 10001
	assert.Error(t, cfg.Validate())

	cfg = Server{Environment: "production", Auth: AuthConfig{TokenSecret: devTokenSecret}}
	assert.ErrorContains(t, cfg.Validate(), "PLATFORM_TOKEN_SECRET")

	cfg.Auth.TokenSecret = "real"
	assert.ErrorContains(t, cfg.Validate(), "WEBHOOK_SIGNING_SECRET")

	cfg.Billing.WebhookSecret = "whsec"
	cfg.Database.URL = "postgres://db"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfigWithDefaults(t *testing.T) {
	cfg := DatabaseConfig{URL: "postgres://db", MaxOpenConns: 3, MaxIdleConns: 10}.WithDefaults()
	assert.Equal(t, 3, cfg.MaxOpenConns)
	assert.Equal(t, 3, cfg.MaxIdleConns, "idle connections are capped at the open limit")
	assert.Equal(t, DefaultDBConnMaxLifetime, cfg.ConnMaxLifetime)
	assert.Equal(t, DefaultDBConnMaxIdleTime, cfg.ConnMaxIdleTime)
	assert.Equal(t, DefaultDBPingTimeout, cfg.PingTimeout)
	assert.Equal(t, DefaultDBStatsInterval, cfg.StatsInterval)

	t.Setenv("DATABASE_PING_TIMEOUT", "750ms")
	assert.Equal(t, 750*time.Millisecond, FromEnv().Database.PingTimeout)
}

func TestValidateRejectsIdleAboveOpen(t *testing.T) {
	cfg := FromEnv()
	cfg.Database.MaxOpenConns = 2
	cfg.Database.MaxIdleConns = 4
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_MAX_IDLE_CONNS")
}
