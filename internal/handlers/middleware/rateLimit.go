package middleware

import (
	"context"
	"strconv"
	"time"

	"reasondesk/internal/database"

	"github.com/gofiber/fiber/v2"
)

// windowCounter counts hits on key inside a fixed window and reports the
// time left in the current window.
type windowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

type valkeyCounter struct {
	client database.CacheClient
}

// Hit sends INCR and TTL in one round trip. A counter without an expiry,
// whether new or left behind by a failed EXPIRE, gets the window applied.
func (v valkeyCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	results := v.client.DoMulti(ctx,
		v.client.B().Incr().Key(key).Build(),
		v.client.B().Ttl().Key(key).Build(),
	)

	count, err := results[0].AsInt64()
	if err != nil {
		return 0, 0, err
	}
	ttl, err := results[1].AsInt64()
	if err != nil {
		return count, window, err
	}

	remaining, expire := windowRemaining(ttl, window)
	if expire {
		cmd := v.client.B().Expire().Key(key).Seconds(int64(window / time.Second)).Build()
		if err := v.client.Do(ctx, cmd).Error(); err != nil {
			return count, window, err
		}
	}

	return count, remaining, nil
}

// windowRemaining converts a TTL reply into the time left in the window and
// reports whether the key still needs an expiry (-1: no expiry set).
func windowRemaining(ttl int64, window time.Duration) (time.Duration, bool) {
	switch {
	case ttl == -1:
		return window, true
	case ttl < 0:
		return window, false
	default:
		return time.Duration(ttl) * time.Second, false
	}
}

// RateLimit allows RateLimitRequests per RateLimitWindowSeconds for each
// client IP. Without a cache, or when the cache errors, requests pass.
func (m Middleware) RateLimit() fiber.Handler {
	return m.limit("RateLimit", func(c *fiber.Ctx) string {
		return "ratelimit:ip:" + c.IP()
	})
}

// UserRateLimit applies the same budget per authenticated user. It must run
// after AuthRequired; requests without a user id pass.
func (m Middleware) UserRateLimit() fiber.Handler {
	return m.limit("UserRateLimit", func(c *fiber.Ctx) string {
		if userID := UserID(c); userID != "" {
			return "ratelimit:user:" + userID
		}
		return ""
	})
}

func (m Middleware) limit(name string, keyFor func(c *fiber.Ctx) string) fiber.Handler {
	limit := int64(m.Config.RateLimitRequests)
	window := time.Duration(m.Config.RateLimitWindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}

	return func(c *fiber.Ctx) error {
		if m.counter == nil || limit <= 0 {
			return c.Next()
		}

		key := keyFor(c)
		if key == "" {
			return c.Next()
		}

		count, remaining, err := m.counter.Hit(c.Context(), key, window)
		if err != nil {
			m.log.File("rateLimit").Function(name).Warn("rate limit counter failed", "key", key, "error", err)
			return c.Next()
		}

		if count > limit {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(remaining.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).
				JSON(fiber.Map{"message": "error", "error": "rate limit exceeded"})
		}

		return c.Next()
	}
}
