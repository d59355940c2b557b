// Package database opens the Postgres pool shared by every streak store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"streak/internal/platform/config"
)

var (
	dbOpenConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streak_db_open_connections",
		Help: "Open Postgres connections, in use or idle",
	})
	dbInUseConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streak_db_in_use_connections",
		Help: "Postgres connections currently checked out by a query or tx",
	})
	dbIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streak_db_idle_connections",
		Help: "Idle Postgres connections",
	})
	dbWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streak_db_wait_total",
		Help: "Times a caller waited for a free Postgres connection",
	})
)

// Pool is the pgx-backed *sql.DB plus the bookkeeping for its stats.
type Pool struct {
	db *sql.DB

	mu       sync.Mutex
	lastWait int64
}

// New opens and pings the pool described by cfg. An empty URL means the
// server runs on in-memory stores, so New returns a nil Pool and no error.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	cfg = cfg.WithDefaults()

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{db: db}, nil
}

// DB is nil for a nil Pool so callers can branch on store mode.
func (p *Pool) DB() *sql.DB {
	if p == nil {
		return nil
	}
	return p.db
}

// Health is registered as the readiness check for the database.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// ReportStats samples the pool every interval until ctx ends.
func (p *Pool) ReportStats(ctx context.Context, interval time.Duration) {
	if p == nil {
		return
	}
	if interval <= 0 {
		interval = config.DefaultDBStatsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RecordStats()
		}
	}
}

// RecordStats copies the current sql.DBStats into the streak_db_* collectors.
func (p *Pool) RecordStats() {
	if p == nil || p.db == nil {
		return
	}
	stats := p.db.Stats()
	dbOpenConns.Set(float64(stats.OpenConnections))
	dbInUseConns.Set(float64(stats.InUse))
	dbIdleConns.Set(float64(stats.Idle))

	p.mu.Lock()
	defer p.mu.Unlock()
	if stats.WaitCount > p.lastWait {
		dbWaits.Add(float64(stats.WaitCount - p.lastWait))
	}
	p.lastWait = stats.WaitCount
}
