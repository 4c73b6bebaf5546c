package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/pkg/metrics"
)

// KeyFunc extracts the rate limit key from the request
type KeyFunc func(*gin.Context) string

// Middleware creates a rate limiting middleware. Limiter failures fail open.
func Middleware(limiter Limiter, keyFunc KeyFunc, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Error("Rate limit check failed",
				zap.Error(err),
				zap.String("key", key))
			c.Next()
			return
		}

		if !allowed {
			logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method))
			metrics.RecordRateLimitHit(c.FullPath())

			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":       "RATE_LIMIT_EXCEEDED",
				"message":    "Too many requests, please try again later",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		if remaining, err := limiter.GetRemaining(c.Request.Context(), key); err == nil {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		}

		c.Next()
	}
}

// UserKeyFunc extracts user ID from context
func UserKeyFunc(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		return ""
	}

	switch id := userID.(type) {
	case uuid.UUID:
		return id.String()
	case string:
		return id
	}
	return ""
}

// IPKeyFunc extracts IP address from request
func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}

// UserOrIPKeyFunc limits identified callers per user and anonymous ones per IP
func UserOrIPKeyFunc(c *gin.Context) string {
	if key := UserKeyFunc(c); key != "" {
		return "user:" + key
	}
	return "ip:" + IPKeyFunc(c)
}
