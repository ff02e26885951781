package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backing the limiter with Redis keeps the same per-key atomicity contract:
// both scripts run atomically per session key server-side. The window lives
// in a ZSET of request timestamps, the chaos state in a hash.

var redisCheckScript = redis.NewScript(`
local win, chaos = KEYS[1], KEYS[2]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local decay_per_min = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', win, 0, now - window)
local count = redis.call('ZCARD', win)
local oldest = redis.call('ZRANGE', win, 0, 0, 'WITHSCORES')

local score = tonumber(redis.call('HGET', chaos, 'score') or '0')
local violations = tonumber(redis.call('HGET', chaos, 'violations') or '0')
local decayed_at = tonumber(redis.call('HGET', chaos, 'decayed_at') or tostring(now))
local minutes = math.floor((now - decayed_at) / 60000)
if minutes > 0 then
  score = math.max(0, score - minutes * decay_per_min)
  violations = math.max(0, violations - minutes)
  decayed_at = decayed_at + minutes * 60000
  redis.call('HSET', chaos, 'score', score, 'violations', violations, 'decayed_at', decayed_at)
end

local reset = now + window
if oldest[2] then reset = tonumber(oldest[2]) + window end
return {count, reset, score, violations}
`)

var redisRecordScript = redis.NewScript(`
local win, chaos = KEYS[1], KEYS[2]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local decay_per_min = tonumber(ARGV[3])
local penalty = tonumber(ARGV[4])
local violation = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', win, 0, now - window)

local score = tonumber(redis.call('HGET', chaos, 'score') or '0')
local violations = tonumber(redis.call('HGET', chaos, 'violations') or '0')
local decayed_at = tonumber(redis.call('HGET', chaos, 'decayed_at') or tostring(now))
local minutes = math.floor((now - decayed_at) / 60000)
if minutes > 0 then
  score = math.max(0, score - minutes * decay_per_min)
  violations = math.max(0, violations - minutes)
  decayed_at = decayed_at + minutes * 60000
end

redis.call('ZADD', win, now, tostring(now) .. '-' .. tostring(redis.call('INCR', chaos .. ':seq')))
redis.call('PEXPIRE', win, window)
redis.call('PEXPIRE', chaos .. ':seq', window)

if penalty > 0 then
  score = score + penalty
  violations = violations + violation
else
  score = math.max(0, score - 1)
end
redis.call('HSET', chaos, 'score', score, 'violations', violations, 'decayed_at', decayed_at)
redis.call('PEXPIRE', chaos, window * 60)

local count = redis.call('ZCARD', win)
local oldest = redis.call('ZRANGE', win, 0, 0, 'WITHSCORES')
local reset = now + window
if oldest[2] then reset = tonumber(oldest[2]) + window end
return {count, reset}
`)

// RedisLimiter is the Redis-backed SessionLimiter, for deployments that need
// rate-limit state shared across processes.
type RedisLimiter struct {
	cfg Config
	rdb *redis.Client
	now func() time.Time
}

func NewRedis(rdb *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{cfg: cfg.withDefaults(), rdb: rdb, now: time.Now}
}

func (l *RedisLimiter) keys(key string) []string {
	return []string{"chaogpt:win:" + key, "chaogpt:chaos:" + key}
}

func (l *RedisLimiter) Check(ctx context.Context, key string) (Verdict, error) {
	now := l.now()
	res, err := redisCheckScript.Run(ctx, l.rdb, l.keys(key),
		now.UnixMilli(), l.cfg.Window.Milliseconds(), l.cfg.DecayPerMinute).Int64Slice()
	if err != nil {
		return Verdict{}, err
	}
	count, reset, score, violations := int(res[0]), res[1], int(res[2]), int(res[3])

	remaining := l.cfg.Capacity - count
	if remaining < 0 {
		remaining = 0
	}
	return Verdict{
		Info: Info{
			Limit:     l.cfg.Capacity,
			Remaining: remaining,
			ResetAt:   time.UnixMilli(reset),
		},
		Limited:  remaining == 0,
		Spamming: score >= l.cfg.ChaosThreshold || violations > l.cfg.MaxViolations,
	}, nil
}

func (l *RedisLimiter) Record(ctx context.Context, key string, class Classification) (Info, error) {
	penalty, violation := 0, 0
	switch class {
	case ClassSpam:
		penalty, violation = l.cfg.SpamPenalty, 1
	case ClassAbuse:
		penalty, violation = l.cfg.AbusePenalty, 1
	}

	now := l.now()
	res, err := redisRecordScript.Run(ctx, l.rdb, l.keys(key),
		now.UnixMilli(), l.cfg.Window.Milliseconds(), l.cfg.DecayPerMinute,
		penalty, violation).Int64Slice()
	if err != nil {
		return Info{}, err
	}
	count, reset := int(res[0]), res[1]

	remaining := l.cfg.Capacity - count
	if remaining < 0 {
		remaining = 0
	}
	return Info{
		Limit:     l.cfg.Capacity,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(reset),
	}, nil
}
