package middleware

import (
	"math/rand/v2"
	"time"

	"github.com/gin-gonic/gin"
)

var randInt64N = rand.Int64N

// TimingEqualizer delays every request by a uniform random duration in
// [minDelay, minDelay+maxDelay] before the handler runs, whatever the outcome
// will be. If the client goes away during the delay the handler is not called.
func TimingEqualizer(minDelay, maxDelay time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		delay := minDelay
		if maxDelay > 0 {
			delay += time.Duration(randInt64N(int64(maxDelay) + 1))
		}

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			c.Next()
		case <-c.Request.Context().Done():
			c.Abort()
		}
	}
}
