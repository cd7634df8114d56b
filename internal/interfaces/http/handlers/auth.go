// internal/interfaces/http/handlers/auth.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/domain/auth"
	"github.com/your-org/storefront-gateway/internal/interfaces/http/middleware"
)

// Authenticator is the auth token contract
type Authenticator interface {
	Login(ctx context.Context, sessionID string, creds auth.Credentials) (*auth.LoginResult, error)
	Verify(ctx context.Context, sessionID string) (map[string]interface{}, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth      Authenticator
	loginPath string
	logger    logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service Authenticator, loginPath string, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		auth:      service,
		loginPath: loginPath,
		logger:    logger,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), middleware.GetSessionID(c), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid email or password",
			})
			return
		}
		h.logger.WithError(err).Error("login failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Login is temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"data":    result,
	})
}

// Verify handles GET /auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	user, err := h.auth.Verify(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":    "Authentication required",
				"redirect": h.loginPath,
			})
			return
		}
		h.logger.WithError(err).Error("token verification failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Verification is temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Token is valid",
		"data":    user,
	})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		h.logger.WithError(err).Error("logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to log out",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
