// internal/interfaces/http/middleware/session.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/config"
	jwtauth "github.com/your-org/storefront-gateway/internal/pkg/auth"
)

// SessionIDKey is the gin context key of the session id
const SessionIDKey = "session_id"

// Session resolves the shopper's session from the signed cookie, or from a bearer
// session token for non-browser clients, and starts a new session when neither is valid.
// The cookie is re-issued on every request so the session slides with activity.
func Session(manager *jwtauth.SessionManager, cfg config.SessionConfig, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cfg.CookieName)
		if token == "" {
			token = jwtauth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		}

		var sid string
		if token != "" {
			id, err := manager.Validate(token)
			switch {
			case err == nil:
				sid = id
			case jwtauth.IsExpired(err):
				logger.Debug("session token expired, starting a new session")
			default:
				logger.WithError(err).Warn("rejected session token")
			}
		}

		var err error
		if sid == "" {
			sid, token, err = manager.NewSession()
		} else {
			token, err = manager.Issue(sid)
		}
		if err != nil {
			logger.WithError(err).Error("failed to issue session token")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to start session",
			})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, token, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
		c.Set(SessionIDKey, sid)
		c.Next()
	}
}

// GetSessionID returns the session id set by Session
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
