package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
)

type Recorder interface {
	Record(ctx context.Context, e audit.Event)
}

// CORS answers for the configured origins only. Cross-origin requests from
// any other origin are recorded and refused with 403.
func CORS(origins []string, recorder Recorder) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:       3 * time.Hour,
		AllowOriginWithContextFunc: func(c *gin.Context, origin string) bool {
			if originAllowed(origin, origins) {
				return true
			}
			recorder.Record(c.Request.Context(), audit.Event{
				Code:   audit.CORSRejected,
				Reason: "origin not allowed",
				Fields: map[string]any{"origin": origin},
			})
			return false
		},
	})
}

func originAllowed(origin string, allowed []string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
	}
	return false
}
