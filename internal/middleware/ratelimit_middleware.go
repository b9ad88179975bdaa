package middleware

import (
	"net/http"

	"collabchat/internal/redis"
	"collabchat/internal/services"
	"collabchat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware caps message sends per authenticated user. Runs
// after AuthMiddleware.
func RateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}
		allowed, _ := limiter.AllowSend(c.Request.Context(), userID.String())
		if !allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limited", "RATE_LIMITED"))
			c.Abort()
			return
		}
		c.Next()
	}
}
