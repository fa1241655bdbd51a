package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/popanda44/seedvalidator-finance/internal/config"
)

// schema creates the observation store. Values are monthly, keyed by the
// first day of the month.
const schema = `
CREATE TABLE IF NOT EXISTS metric_observations (
	id BIGSERIAL PRIMARY KEY,
	company_id TEXT NOT NULL,
	metric TEXT NOT NULL,
	period_start DATE NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (company_id, metric, period_start)
);
CREATE INDEX IF NOT EXISTS idx_metric_observations_lookup
	ON metric_observations (company_id, metric, period_start DESC);`

type PostgresDB struct {
	Pool *pgxpool.Pool
}

// ConnectionString returns the configured DATABASE_URL, or builds a
// key/value DSN from the individual fields.
func ConnectionString(cfg config.DatabaseConfig) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid conn_max_lifetime %q: %w", cfg.ConnMaxLifetime, err)
		}
		poolConfig.MaxConnLifetime = lifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("max_conns", poolConfig.MaxConns).Info("Successfully connected to PostgreSQL")

	return &PostgresDB{Pool: pool}, nil
}

// EnsureSchema creates the observation table and its index if missing.
func EnsureSchema(ctx context.Context, pool DatabasePool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logrus.Info("PostgreSQL connection closed")
	}
}

func (db *PostgresDB) HealthCheck(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database not configured")
	}
	return db.Pool.Ping(ctx)
}
