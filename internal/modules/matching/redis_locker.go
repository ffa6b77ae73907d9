// README: Redis-backed match lock so several API instances share one critical section per key.
package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const lockKeyPrefix = "matching:lock:"

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	redis redis.UniversalClient
	ttl   time.Duration
	retry time.Duration
	log   logrus.FieldLogger
}

// NewRedisLocker: ttl bounds how long a crashed holder can block a key.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, log logrus.FieldLogger) *RedisLocker {
	return &RedisLocker{redis: client, ttl: ttl, retry: 25 * time.Millisecond, log: log}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKeyPrefix + key
	token := uuid.NewString()
	for {
		ok, err := r.redis.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", k, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.redis, []string{k}, token).Err(); err != nil && err != redis.Nil {
				r.log.WithError(err).WithField("lock", k).Warn("failed to release match lock")
			}
		})
	}, nil
}
