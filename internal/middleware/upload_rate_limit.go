package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewUploadRateLimitMiddleware creates a stricter rate limiting middleware for
// upload endpoints. Video chunks arrive at a few per minute per robot, so 60
// requests per minute per IP leaves headroom without letting a misbehaving
// client hammer the blob store.
func NewUploadRateLimitMiddleware() gin.HandlerFunc {
	return NewUploadRateLimitMiddlewareWithConfig(60, 1*time.Minute)
}

// NewUploadRateLimitMiddlewareWithConfig creates a rate limiting middleware with custom configuration
func NewUploadRateLimitMiddlewareWithConfig(limit int64, period time.Duration) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate)
	middleware := mgin.NewMiddleware(instance)

	return middleware
}
