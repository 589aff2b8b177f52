package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
)

type Allower interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit allows limit requests per window per client IP and scope.
func RateLimit(limiter Allower, recorder Recorder, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, _ := limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP(), limit, window)
		if ok {
			c.Next()
			return
		}

		recorder.Record(c.Request.Context(), audit.Event{
			Code:   audit.RateLimited,
			Reason: "too many requests",
			Fields: map[string]any{"scope": scope, "limit": limit},
		})
		c.Header("Retry-After", retryAfter(window))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody{
			Code:    CodeRateLimited,
			Message: "too many requests, try again later",
		})
	}
}

func retryAfter(window time.Duration) string {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
