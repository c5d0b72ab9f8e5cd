package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iliyamo/review-channels/internal/config"
)

var limiterScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// bucket decides whether one more request under key may pass.
type bucket interface {
	take(c echo.Context, key string) (allowed bool, remaining int64, retry time.Duration, err error)
}

// NewTokenBucket returns the rate limiting middleware.  Buckets live in
// Redis when rdb is non-nil so every replica shares them; otherwise each
// process keeps its own golang.org/x/time/rate limiters.  A Redis failure
// lets the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logrus.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	var b bucket
	if rdb != nil {
		b = &redisBucket{rdb: rdb, cfg: cfg}
	} else {
		b = newLocalBucket(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			allowed, remaining, retry, err := b.take(c, key)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("ratelimit: bucket unavailable, allowing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 0 {
					secs = 0
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

type redisBucket struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
}

func (r *redisBucket) take(c echo.Context, key string) (bool, int64, time.Duration, error) {
	args := []interface{}{
		time.Now().UnixMilli(),
		r.cfg.Capacity,
		r.cfg.RefillTokens,
		r.cfg.RefillInterval.Milliseconds(),
		int64(r.cfg.TTL / time.Second),
	}
	vals, err := limiterScript.Run(c.Request().Context(), r.rdb, []string{key}, args...).Result()
	if err != nil {
		return false, 0, 0, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected script result %#v", vals)
	}
	return asInt64(arr[0]) == 1, asInt64(arr[1]), time.Duration(asInt64(arr[2])) * time.Millisecond, nil
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localBucket keeps one x/time/rate limiter per key.  Entries idle for
// longer than the configured TTL are swept lazily.
type localBucket struct {
	cfg       config.RateLimitConfig
	limiters  sync.Map
	mu        sync.Mutex
	lastSweep time.Time
}

func newLocalBucket(cfg config.RateLimitConfig) *localBucket {
	return &localBucket{cfg: cfg, lastSweep: time.Now()}
}

func (l *localBucket) take(_ echo.Context, key string) (bool, int64, time.Duration, error) {
	now := time.Now()
	l.sweep(now)

	every := rate.Every(l.cfg.RefillInterval / time.Duration(l.cfg.RefillTokens))
	v, _ := l.limiters.LoadOrStore(key, &localLimiter{limiter: rate.NewLimiter(every, l.cfg.Capacity)})
	ll := v.(*localLimiter)

	l.mu.Lock()
	ll.lastSeen = now
	l.mu.Unlock()

	r := ll.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay, nil
	}
	return true, int64(ll.limiter.TokensAt(now)), 0, nil
}

func (l *localBucket) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) < l.cfg.TTL {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.cfg.TTL)
	l.limiters.Range(func(k, v interface{}) bool {
		if v.(*localLimiter).lastSeen.Before(cutoff) {
			l.limiters.Delete(k)
		}
		return true
	})
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// buildRateKey composes the bucket key according to cfg.KeyStrategy.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	who := principal(c)
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "principal":
		parts = append(parts, "principal", who)
	case "ip_principal":
		parts = append(parts, "ip", ip, "principal", who)
	default:
		parts = append(parts, "ip", ip, "principal", who, "route", route)
	}
	return strings.Join(parts, ":")
}
