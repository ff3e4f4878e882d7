// Package ratelimit guards public endpoints with a token bucket shared
// through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go-letters/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Limiter decides whether key may spend one more token.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// tokenBucketScript refills and consumes atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = cost
// ARGV[4] = now (unix seconds, microsecond precision)
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 120)

return {allowed, tostring(tokens)}
`)

type RedisLimiter struct {
	client *redis.Client
	prefix string
	perMin int
}

func NewRedisLimiter(client *redis.Client, prefix string, perMinute int) *RedisLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RedisLimiter{client: client, prefix: prefix, perMin: perMinute}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rate := float64(l.perMin) / 60.0
	now := float64(time.Now().UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + key}, rate, l.perMin, 1, now).Result()
	if err != nil {
		return false, fmt.Errorf("redis limiter error: %w", err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return false, fmt.Errorf("invalid response from limiter script")
	}
	allowed, _ := results[0].(int64)
	return allowed == 1, nil
}

// AllowAll is used when no Redis is configured.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, string) (bool, error) { return true, nil }

// NewLimiter builds the verification limiter from config.
func NewLimiter(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) Limiter {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, verification endpoint is not rate limited")
		return AllowAll{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("redis is unreachable, limiter will fail open", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedisLimiter(client, "verify:", cfg.VerifyRatePerMinute)
}
