package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"tradezone/internal/infrastructure/ratelimit"
	"tradezone/pkg/errors"
	"tradezone/pkg/logger"
	"tradezone/pkg/response"
)

// RateLimit keys authenticated requests by member and everything else by client address.
// Mount it after Authenticate to get per-member buckets.
func RateLimit(rl *ratelimit.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if memberID, ok := MemberID(c); ok {
				key = "member:" + strconv.FormatInt(memberID, 10)
			}

			allowed, retryAfter := rl.Allow(key)
			if !allowed {
				logger.Ctx(c.Request().Context()).Warn().Str("key", key).Dur("retry_after", retryAfter).Msg("rate limit exceeded")
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}
			return next(c)
		}
	}
}
