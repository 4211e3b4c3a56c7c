// Package ratelimit provides a redis-backed token bucket and a
// best-effort distributed lock.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokenBucketScript refills and consumes atomically. KEYS[1] is the
// bucket key; ARGV are rate (tokens/sec), burst, now (unix micros) and
// requested tokens. Returns 1 when allowed.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'updated')
local tokens = tonumber(data[1])
local updated = tonumber(data[2])
if tokens == nil then
  tokens = burst
  updated = now
end

local elapsed = math.max(0, now - updated) / 1000000
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
if tokens >= requested then
  tokens = tokens - requested
  allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'updated', now)
redis.call('EXPIRE', key, math.ceil(burst / rate) * 2)
return allowed
`)

// Limiter is a token-bucket rate limiter. When redis is unreachable it
// fails open: throttling is load protection, not access control.
type Limiter struct {
	rdb    *redis.Client
	rate   float64
	burst  int
	prefix string
	log    *zap.Logger
}

// NewLimiter returns a limiter allowing rate tokens per second with the
// given burst.
func NewLimiter(rdb *redis.Client, rate float64, burst int, prefix string, log *zap.Logger) *Limiter {
	return &Limiter{rdb: rdb, rate: rate, burst: burst, prefix: prefix, log: log}
}

// Allow consumes one token for key.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.rdb == nil {
		return true
	}

	now := time.Now().UnixMicro()
	res, err := tokenBucketScript.Run(ctx, l.rdb,
		[]string{l.prefix + ":" + key},
		l.rate, l.burst, now, 1).Int()
	if err != nil {
		l.log.Warn("rate limiter degraded, allowing request", zap.Error(err))
		return true
	}
	return res == 1
}
