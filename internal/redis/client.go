// Package redis holds the Redis-backed coordination of the reminder service:
// the run lock that keeps two reminder runs from texting the same patients,
// and the admin API rate limiter. Redis is optional; callers treat a failed
// New as "run without coordination".
package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config points at the Redis instance shared by the worker and admin API.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is the connection shared by RunLock and RateLimiter.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects and pings once. Timeouts are short because every caller
// fails open: a slow Redis must not hold up a reminder run.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,

		// one lock holder plus a trickle of admin requests
		PoolSize:     4,
		MinIdleConns: 1,

		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", cfg.Addr(), err)
	}

	logger.Info("redis ready for run lock and rate limiting",
		zap.String("addr", cfg.Addr()),
		zap.Int("db", cfg.DB),
	)

	return &Client{rdb: rdb, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
