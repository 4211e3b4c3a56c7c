package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if the holder token still
// matches, so an expired lock re-acquired by someone else is safe.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker is a redis SET NX lock for singleton background jobs. Without
// redis every instance acquires, which is acceptable for a single-node
// deployment.
type Locker struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewLocker returns a Locker. rdb may be nil.
func NewLocker(rdb *redis.Client, log *zap.Logger) *Locker {
	return &Locker{rdb: rdb, log: log}
}

// TryLock attempts to take the named lock for ttl. On success the
// returned release func frees it early.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, func()) {
	if l.rdb == nil {
		return true, func() {}
	}

	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, "lock:"+name, token, ttl).Result()
	if err != nil {
		l.log.Warn("lock acquisition degraded, proceeding", zap.String("lock", name), zap.Error(err))
		return true, func() {}
	}
	if !ok {
		return false, func() {}
	}

	return true, func() {
		if _, err := releaseScript.Run(context.Background(), l.rdb, []string{"lock:" + name}, token).Result(); err != nil {
			l.log.Warn("lock release failed", zap.String("lock", name), zap.Error(err))
		}
	}
}
