package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const releaseTimeout = 3 * time.Second

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a single-holder lock with a TTL, used to keep two reminder runs
// (cron plus a manual trigger, or two replicas) from overlapping.
type RunLock struct {
	client *Client
	logger *zap.Logger
}

// NewRunLock creates a new run lock.
func NewRunLock(client *Client, logger *zap.Logger) *RunLock {
	return &RunLock{
		client: client,
		logger: logger,
	}
}

func (l *RunLock) buildKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// TryLock acquires name for at most ttl using SET NX. acquired is false when
// another holder has it. The returned unlock func is safe to call once the
// caller's context is gone.
func (l *RunLock) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.buildKey(name)
	token := uuid.NewString()

	ok, err := l.client.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	l.logger.Debug("run lock acquired", zap.String("key", key), zap.Duration("ttl", ttl))

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release run lock, it will expire",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	return unlock, true, nil
}

// Held reports whether name is currently locked by anyone.
func (l *RunLock) Held(ctx context.Context, name string) (bool, error) {
	n, err := l.client.rdb.Exists(ctx, l.buildKey(name)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n == 1, nil
}
