package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/notifications/internal/ratelimit"
	"github.com/aura-webinar/notifications/pkg/response"
)

// RateLimit enforces the fixed-window quota for action, keyed by client IP.
// X-RateLimit-* headers are set on every response; rejections additionally
// carry Retry-After.
func RateLimit(limiter *ratelimit.Limiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := limiter.Check(action, c.ClientIP())
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfterSec))
			response.TooManyRequests(c, "rate limit exceeded, retry after "+strconv.Itoa(res.RetryAfterSec)+"s")
			c.Abort()
			return
		}
		c.Next()
	}
}
