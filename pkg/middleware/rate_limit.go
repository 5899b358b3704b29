package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/webdevsha/permitakaun/pkg/logger"
	pkgredis "github.com/webdevsha/permitakaun/pkg/redis"
	"github.com/webdevsha/permitakaun/pkg/response"
	"go.uber.org/zap"
)

// RateLimitConfig holds token bucket settings applied per client IP and route
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// RedisClient switches to the shared Redis limiter when set
	RedisClient *pkgredis.Client
	KeyPrefix   string
	// EntryTTL is how long an idle local bucket is kept
	EntryTTL time.Duration
}

// DefaultRateLimitConfig is sized for public endpoints hit by humans, not machines
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         10,
		KeyPrefix:         "permitakaun:ratelimit:",
		EntryTTL:          10 * time.Minute,
	}
}

// RateLimiter decides whether a key may make another request
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// LocalRateLimiter is an in-process token bucket per key
type LocalRateLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLocalRateLimiter creates a local token bucket limiter
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	return &LocalRateLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow implements RateLimiter
func (rl *LocalRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.config.BurstSize), lastUpdate: now}
		rl.buckets[key] = b
		rl.evictIdle(now)
	}

	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.tokens = minFloat(float64(rl.config.BurstSize), b.tokens+elapsed*rl.config.RequestsPerSecond)
	b.lastUpdate = now

	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// evictIdle drops buckets untouched for EntryTTL; called with mu held
func (rl *LocalRateLimiter) evictIdle(now time.Time) {
	if rl.config.EntryTTL <= 0 || len(rl.buckets) < 1024 {
		return
	}
	cutoff := now.Add(-rl.config.EntryTTL)
	for k, b := range rl.buckets {
		if b.lastUpdate.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "last_update")
local tokens = tonumber(data[1]) or burst
local last_update = tonumber(data[2]) or now

tokens = math.min(burst, tokens + (now - last_update) * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_update", now)
redis.call("EXPIRE", key, 600)
return allowed
`

// tokenBucketScriptName is the name the limiter script is loaded under
const tokenBucketScriptName = "token_bucket"

// RedisRateLimiter shares token buckets across instances through a Lua script
type RedisRateLimiter struct {
	config RateLimitConfig
	now    func() time.Time
}

// NewRedisRateLimiter loads the token bucket script and creates a Redis-backed limiter
func NewRedisRateLimiter(ctx context.Context, config RateLimitConfig) (*RedisRateLimiter, error) {
	if _, err := config.RedisClient.LoadScript(ctx, tokenBucketScriptName, tokenBucketScript); err != nil {
		return nil, err
	}
	return &RedisRateLimiter{config: config, now: time.Now}, nil
}

// Allow implements RateLimiter
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(rl.now().UnixNano()) / 1e9

	allowed, err := rl.config.RedisClient.EvalScript(ctx, tokenBucketScriptName,
		[]string{rl.config.KeyPrefix + key},
		rl.config.RequestsPerSecond,
		rl.config.BurstSize,
		now,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return allowed == 1, nil
}

// NewRateLimiter picks the Redis limiter when a client is configured
func NewRateLimiter(ctx context.Context, config RateLimitConfig) (RateLimiter, error) {
	if config.RedisClient != nil {
		return NewRedisRateLimiter(ctx, config)
	}
	return NewLocalRateLimiter(config), nil
}

// RateLimit rejects callers over the limit with 429; limiter errors fail open
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + "|" + getClientIP(c)

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Get().WarnContext(c.Request.Context(), "rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.TooManyRequests(""))
			return
		}
		c.Next()
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
