package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries our token, so a
// holder whose TTL already expired cannot release somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out distributed locks backed by SET NX.
type Locker struct {
	client *redis.Client
}

// NewLocker creates a Locker on the cache's client.
func NewLocker(cache *Cache) *Locker {
	return &Locker{client: cache.Client()}
}

// TryLock attempts to take the named lock for ttl. When ok is false another
// holder owns it. The returned unlock is safe to call more than once.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	key := LockKey(name)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	unlock := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return unlock, true, nil
}
