package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit applies a single token bucket across all callers. The API runs
// behind the clinic's reverse proxy, so one shared bucket is enough to keep
// request floods away from the database.
func RateLimit(limit rate.Limit, burst int) gin.HandlerFunc {
	bucket := rate.NewLimiter(limit, burst)
	return func(c *gin.Context) {
		if !bucket.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    http.StatusTooManyRequests,
				Message: "Too many requests",
				TraceID: c.GetString(ContextRequestID),
			})
			return
		}
		c.Next()
	}
}
