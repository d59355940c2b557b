package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Billing  BillingConfig
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	StatsInterval   time.Duration
}

// Pool defaults used by FromEnv and for zero fields in WithDefaults.
const (
	DefaultDBMaxOpenConns    = 25
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = 5 * time.Minute
	DefaultDBConnMaxIdleTime = time.Minute
	DefaultDBPingTimeout     = 5 * time.Second
	DefaultDBStatsInterval   = 15 * time.Second
)

// WithDefaults fills zero fields so a hand-built config still yields a bounded pool.
func (c DatabaseConfig) WithDefaults() DatabaseConfig {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = DefaultDBConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = DefaultDBConnMaxIdleTime
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = DefaultDBPingTimeout
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = DefaultDBStatsInterval
	}
	return c
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
}

// Enabled reports whether outbox events should be published to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// AuthConfig verifies the platform's signed user tokens.
type AuthConfig struct {
	TokenSecret string
	TokenIssuer string
}

type BillingConfig struct {
	WebhookSecret  string
	PlatformFeeBPS int
	DedupeTTL      time.Duration
}

const devTokenSecret = "dev-platform-secret-change-in-production"

// FromEnv builds a Server config from environment variables, loading a .env
// file first when one exists.
func FromEnv() Server {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	env := getEnv("ENVIRONMENT", "development")
	return Server{
		Addr:           getEnv("STREAK_ADDR", ":8080"),
		Environment:    env,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", DefaultDBMaxOpenConns),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", DefaultDBMaxIdleConns),
			ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", DefaultDBConnMaxLifetime),
			ConnMaxIdleTime: getEnvAsDuration("DATABASE_CONN_MAX_IDLE_TIME", DefaultDBConnMaxIdleTime),
			PingTimeout:     getEnvAsDuration("DATABASE_PING_TIMEOUT", DefaultDBPingTimeout),
			StatsInterval:   getEnvAsDuration("DATABASE_STATS_INTERVAL", DefaultDBStatsInterval),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			EventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "streak.events"),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("PLATFORM_TOKEN_SECRET", devTokenSecret),
			TokenIssuer: os.Getenv("PLATFORM_TOKEN_ISSUER"),
		},
		Billing: BillingConfig{
			WebhookSecret:  os.Getenv("WEBHOOK_SIGNING_SECRET"),
			PlatformFeeBPS: getEnvAsInt("PLATFORM_FEE_BPS", 1000),
			DedupeTTL:      getEnvAsDuration("WEBHOOK_DEDUPE_TTL", 24*time.Hour),
		},
	}
}

func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Validate rejects settings the server cannot run with.
func (s Server) Validate() error {
	if s.Billing.PlatformFeeBPS < 0 || s.Billing.PlatformFeeBPS > 10000 {
		return fmt.Errorf("PLATFORM_FEE_BPS must be between 0 and 10000, got %d", s.Billing.PlatformFeeBPS)
	}
	if s.Database.MaxOpenConns > 0 && s.Database.MaxIdleConns > s.Database.MaxOpenConns {
		return fmt.Errorf("DATABASE_MAX_IDLE_CONNS (%d) exceeds DATABASE_MAX_OPEN_CONNS (%d)",
			s.Database.MaxIdleConns, s.Database.MaxOpenConns)
	}
	if s.IsProduction() {
		if s.Auth.TokenSecret == devTokenSecret {
			return fmt.Errorf("PLATFORM_TOKEN_SECRET must be set in production")
		}
		if s.Billing.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_SIGNING_SECRET must be set in production")
		}
		if s.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL must be set in production")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
