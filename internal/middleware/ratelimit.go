package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/pipeline-crm/internal/config"
	"github.com/iliyamo/pipeline-crm/internal/respond"
)

// takeToken refills the bucket stored at KEYS[1] for the whole intervals
// elapsed since its last refill, then spends one token if any is left.
// It returns {granted, tokens left, ms until the next refill}.
var takeToken = redis.NewScript(`
local now, cap, step, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local b = redis.call('HMGET', KEYS[1], 't', 'at')
local t, at = tonumber(b[1]), tonumber(b[2])
if not t then
  t, at = cap, now
end
local n = math.floor((now - at) / every)
if n > 0 then
  t = math.min(cap, t + n * step)
  at = at + n * every
end
local granted = 0
if t >= 1 then
  t = t - 1
  granted = 1
end
redis.call('HSET', KEYS[1], 't', t, 'at', at)
redis.call('PEXPIRE', KEYS[1], ttl)
return {granted, t, math.max(0, at + every - now)}
`)

type bucketResult struct {
	granted bool
	left    int64
	wait    time.Duration
}

func parseBucket(v any) (bucketResult, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return bucketResult{}, false
	}
	nums := make([]int64, 3)
	for i, x := range arr {
		n, ok := x.(int64)
		if !ok {
			return bucketResult{}, false
		}
		nums[i] = n
	}
	return bucketResult{granted: nums[0] == 1, left: nums[1], wait: time.Duration(nums[2]) * time.Millisecond}, true
}

// NewTokenBucket limits requests with a Redis-backed token bucket keyed by
// cfg.KeyStrategy.  Without Redis, or when disabled, it passes everything.
// Redis errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}
	every := max(cfg.RefillInterval, time.Millisecond)
	ttl := max(cfg.TTL, every)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := bucketKey(cfg, c)
			raw, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
				nowFunc().UnixMilli(), cfg.Capacity, cfg.RefillTokens, every.Milliseconds(), ttl.Milliseconds()).Result()
			if err != nil {
				log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			res, ok := parseBucket(raw)
			if !ok {
				log.Warn("rate limiter returned unexpected result", zap.String("key", key), zap.Any("result", raw))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.left, 10))
			if res.granted {
				return next(c)
			}

			secs := int((res.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Info("rate limited", zap.String("key", key), zap.Int("retry_after", secs))
			return c.JSON(http.StatusTooManyRequests, respond.Envelope{
				Status:  http.StatusTooManyRequests,
				Message: "Too many requests, retry in " + strconv.Itoa(secs) + "s",
			})
		}
	}
}

// bucketKey is "<prefix>:ip:<addr>", "<prefix>:session:<hash>" or both,
// depending on the strategy.  Unknown strategies fall back to the IP.
func bucketKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case config.KeyBySession:
		parts = append(parts, "session", sessionKey(c))
	case config.KeyByIPSession:
		parts = append(parts, "ip", ip, "session", sessionKey(c))
	default:
		parts = append(parts, "ip", ip)
	}
	return strings.Join(parts, ":")
}
