package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimit returns a fixed-window request limiter backed by Redis,
// applied to the mutating seat endpoints so one misbehaving client cannot
// hammer the lock path. The window state lives in Redis so multiple server
// instances share one budget per session. When Redis is unavailable the
// limiter fails open; losing rate limiting is better than refusing seat
// locks.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) echo.MiddlewareFunc {
	if rdb == nil || limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(c, window)
			ctx := c.Request().Context()

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				return next(c)
			}
			if count == 1 {
				_ = rdb.Expire(ctx, key, window).Err()
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(window/time.Second)))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":   "too_many_requests",
					"message": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}

// rateKey buckets requests per session (falling back to client IP for
// unauthenticated routes) and per window start.
func rateKey(c echo.Context, window time.Duration) string {
	id, ok := c.Get("session_id").(string)
	if !ok || id == "" {
		id = "ip:" + c.RealIP()
	}
	bucket := time.Now().Unix() / int64(window/time.Second)
	return fmt.Sprintf("rl:%s:%s:%d", c.Path(), id, bucket)
}
