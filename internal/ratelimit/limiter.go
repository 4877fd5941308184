package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chatgw:rl:"

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter counts requests per caller in a sliding window kept in a Redis
// sorted set. A nil client admits everything.
type Limiter struct {
	rdb *redis.Client
	now func() time.Time
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb, now: time.Now}
}

// windowScript trims the window, admits the request if there is room and
// reports the oldest surviving timestamp so callers know when a slot frees up.
//
//	KEYS[1]  bucket
//	ARGV[1]  window start, unix micros
//	ARGV[2]  now, unix micros
//	ARGV[3]  limit
//	ARGV[4]  key ttl, seconds
//	returns  {count, admitted (1|0), oldest unix micros}
var windowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[1])
local count = redis.call('ZCARD', key)
local admitted = 0
if count < limit then
    redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
    count = count + 1
    admitted = 1
end
redis.call('EXPIRE', key, ARGV[4])

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then
    first = tonumber(oldest[2])
end
return {count, admitted, first}
`)

// Check admits or rejects one request against limit per window. Redis
// failures admit the request.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	now := l.now()
	if l.rdb == nil {
		return LimitResult{Allowed: true, Remaining: limit - 1, ResetAt: now.Add(window)}, nil
	}

	reply, err := windowScript.Run(ctx, l.rdb, []string{keyPrefix + key},
		now.Add(-window).UnixMicro(),
		now.UnixMicro(),
		limit,
		int64(window.Seconds())+1,
	).Int64Slice()
	if err != nil || len(reply) != 3 {
		slog.Warn("rate limit check failed, admitting request", "key", key, "error", err)
		return LimitResult{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, nil
	}
	return windowResult(now, window, limit, reply[0], reply[1] == 1, time.UnixMicro(reply[2])), nil
}

// windowResult derives the client-facing numbers from the window state.
// The window frees its next slot when the oldest entry ages out.
func windowResult(now time.Time, window time.Duration, limit, count int64, admitted bool, oldest time.Time) LimitResult {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	resetAt := oldest.Add(window)
	if resetAt.Before(now) {
		resetAt = now
	}
	res := LimitResult{Allowed: admitted, Remaining: remaining, ResetAt: resetAt}
	if !admitted {
		res.RetryAfter = resetAt.Sub(now).Round(time.Second)
		if res.RetryAfter < time.Second {
			res.RetryAfter = time.Second
		}
	}
	return res
}
