// Package runlock keeps overlapping batch invocations from double-firing the
// same due set when several job runners share one database.
package runlock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKey = "scheduled:update:lock"

// releaseScript deletes the lock only if this process still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisLock struct {
	rdb   *redis.Client
	owner string
	ttl   time.Duration
}

// NewRedisLock builds a lock against the given Redis server. The TTL bounds
// how long a crashed batch can keep others out.
func NewRedisLock(address, username, password string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	host, _ := os.Hostname()
	return &RedisLock{
		rdb: redis.NewClient(&redis.Options{
			Addr:     address,
			Username: username,
			Password: password,
			DB:       0,
		}),
		owner: fmt.Sprintf("%s-%d", host, os.Getpid()),
		ttl:   ttl,
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, lockKey, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring run lock: %w", err)
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{lockKey}, l.owner).Err(); err != nil {
		return fmt.Errorf("releasing run lock: %w", err)
	}
	return nil
}
