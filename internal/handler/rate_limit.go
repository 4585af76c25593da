package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aichukanov/docta-auth/internal/dto"
	"github.com/aichukanov/docta-auth/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware throttles a route using the Redis sliding window.
// Redis failures fail open: rate limiting is brute-force protection, not a
// correctness guarantee, and must never lock everyone out of authentication.
func RateLimitMiddleware(rateLimiter *service.RateLimiter, limit int, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := rateLimiter.Allow(c.Request.Context(), keyFunc(c), limit, window)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "too_many_requests",
				Message: "Rate limit exceeded, please retry later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// IPBasedKey extracts rate limit key from client IP
func IPBasedKey(c *gin.Context) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}

	return c.ClientIP()
}
