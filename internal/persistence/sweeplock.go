package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SweepLock guards against overlapping sweeps of the same tenant across
// sweep cycles and engine instances. Backed by Redis SET NX with a TTL so a
// crashed holder releases automatically.
type SweepLock struct {
	redis  *Redis
	holder string
}

// releaseScript deletes the lock only while this holder still owns it; an
// instance whose lock already expired must not delete the lock a newer
// holder has taken since.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// NewSweepLock builds a lock manager identified by holder (typically the
// instance name).
func NewSweepLock(redis *Redis, holder string) *SweepLock {
	return &SweepLock{redis: redis, holder: holder}
}

// Acquire attempts to take the named lock. Returns false when another
// holder already owns it.
func (l *SweepLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.redis == nil || l.redis.Client == nil {
		return false, errors.New("redis client not configured")
	}
	return l.redis.Client.SetNX(ctx, key, l.holder, ttl).Result()
}

// Release drops the named lock if this instance still holds it. Expired
// locks release themselves; Release after expiry is a no-op.
func (l *SweepLock) Release(ctx context.Context, key string) error {
	if l.redis == nil || l.redis.Client == nil {
		return errors.New("redis client not configured")
	}
	return releaseScript.Run(ctx, l.redis.Client, []string{key}, l.holder).Err()
}
