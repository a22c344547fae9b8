package middleware

import (
	"net/http"
	"strconv"

	"benome-realtime/internal/redis"
	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"
	"benome-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebSocketRateLimitMiddleware limits websocket handshakes per client IP. It
// fails open when Redis is unreachable.
func WebSocketRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowConnection(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.GetGlobalLogger().WithContext(c.Request.Context()).Warn("connection rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("connection rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// MessageRateLimitMiddleware rejects REST sends once the user's message budget
// is spent. The message pipeline consumes the budget.
func MessageRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := limiter.PeekMessage(c.Request.Context(), userID.String())
		if err != nil {
			c.Next()
			return
		}
		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("message rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
