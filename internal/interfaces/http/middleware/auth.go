// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/domain/auth"
)

const shopperKey = "shopper"

// ShopperResolver looks up the logged-in shopper of a session
type ShopperResolver interface {
	Shopper(ctx context.Context, sessionID string) (*auth.Shopper, error)
	RememberReturnPath(ctx context.Context, sessionID, path string, checkout bool) error
}

// RequireShopper rejects requests whose session holds no valid commerce token.
// returnPath is stored as the post-login redirect; checkout marks checkout routes.
func RequireShopper(resolver ShopperResolver, loginPath, returnPath string, checkout bool, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := GetSessionID(c)

		shopper, err := resolver.Shopper(c.Request.Context(), sid)
		if err != nil {
			if !errors.Is(err, auth.ErrNotAuthenticated) {
				logger.WithError(err).WithField("session_id", sid).Error("failed to resolve shopper")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to resolve session",
				})
				return
			}

			if err := resolver.RememberReturnPath(c.Request.Context(), sid, returnPath, checkout); err != nil {
				logger.WithError(err).WithField("session_id", sid).Warn("failed to store return path")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "Authentication required",
				"redirect": loginPath,
			})
			return
		}

		c.Set(shopperKey, shopper)
		c.Next()
	}
}

// GetShopper returns the shopper set by RequireShopper
func GetShopper(c *gin.Context) (*auth.Shopper, bool) {
	v, exists := c.Get(shopperKey)
	if !exists {
		return nil, false
	}
	shopper, ok := v.(*auth.Shopper)
	return shopper, ok
}
