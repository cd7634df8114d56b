// internal/interfaces/http/middleware/timeout.go
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout puts a deadline on the request context. Handlers observe it through their
// downstream calls; the checkout finalization detaches from it on purpose.
// Routes listed in streams (full route paths) are long-lived and get no deadline.
func Timeout(timeout time.Duration, streams ...string) gin.HandlerFunc {
	exempt := make(map[string]struct{}, len(streams))
	for _, route := range streams {
		exempt[route] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := exempt[c.FullPath()]; ok || timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
