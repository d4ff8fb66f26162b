// Package db is the PostgreSQL layer of the reminder service: the pgx pool,
// the appointment and patient models, and the queries that select reminder
// candidates and write the SMS audit log.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const applicationName = "clinicflow-reminders"

// Config holds the connection settings read from DB_* variables.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the keyword/value connection string understood by both
// pgxpool and the pgx database/sql driver used by the migrator. The password
// keyword is left out when empty so libpq-style fallbacks (PGPASSWORD,
// .pgpass) still apply.
func (c Config) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s", c.Host, c.Port, c.User)
	if c.Password != "" {
		dsn += " password=" + c.Password
	}
	return dsn + fmt.Sprintf(" dbname=%s sslmode=%s", c.Database, c.SSLMode)
}

// DB owns the pool shared by the repository and the health check.
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New opens the pool and fails unless the database answers a ping.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	// A run walks its candidates one at a time; the admin API adds a few
	// short reads on top.
	poolConfig.MaxConns = 8
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s on %s:%d: %w", cfg.Database, cfg.Host, cfg.Port, err)
	}

	logger.Info("postgres pool ready",
		zap.String("db_host", cfg.Host),
		zap.String("db_name", cfg.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)

	return &DB{pool: pool, logger: logger}, nil
}

func (db *DB) Close() {
	db.logger.Debug("closing postgres pool")
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Health implements api.HealthChecker.
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
