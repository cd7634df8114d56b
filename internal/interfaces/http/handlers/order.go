// internal/interfaces/http/handlers/order.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/domain/order"
	"github.com/your-org/storefront-gateway/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-gateway/internal/pkg/commerce"
)

// OrderReader is the read side of the order lifecycle client
type OrderReader interface {
	ListForCustomer(ctx context.Context, token, customerID string) ([]order.Order, error)
	Get(ctx context.Context, token string, id order.ID) (*order.Order, error)
	Invoice(ctx context.Context, token string, id order.ID) (*order.Invoice, error)
}

// SessionIdentity clears a rejected login and remembers where to resume after the next one
type SessionIdentity interface {
	DropToken(ctx context.Context, sessionID string) error
	RememberReturnPath(ctx context.Context, sessionID, path string, checkout bool) error
}

// OrderHandler handles order history and invoice endpoints
type OrderHandler struct {
	orders    OrderReader
	identity  SessionIdentity
	loginPath string
	logger    logrus.FieldLogger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderReader, identity SessionIdentity, loginPath string, logger logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		identity:  identity,
		loginPath: loginPath,
		logger:    logger,
	}
}

// ListOrders handles GET /orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	shopper, ok := middleware.GetShopper(c)
	if !ok {
		h.unauthorized(c)
		return
	}

	orders, err := h.orders.ListForCustomer(c.Request.Context(), shopper.Token, shopper.UserID)
	if err != nil {
		h.upstreamError(c, err, "Failed to retrieve orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    orders,
	})
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	shopper, ok := middleware.GetShopper(c)
	if !ok {
		h.unauthorized(c)
		return
	}

	o, err := h.orders.Get(c.Request.Context(), shopper.Token, order.ID(c.Param("id")))
	if err != nil {
		h.upstreamError(c, err, "Failed to retrieve order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    o,
	})
}

func (h *OrderHandler) unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":    "Authentication required",
		"redirect": h.loginPath,
	})
}

// tokenRejected handles a 401 from the commerce API for a token the session still held
func (h *OrderHandler) tokenRejected(c *gin.Context) {
	ctx := c.Request.Context()
	sid := middleware.GetSessionID(c)
	log := h.logger.WithField("session_id", sid)

	if err := h.identity.DropToken(ctx, sid); err != nil {
		log.WithError(err).Error("failed to drop rejected token")
	}
	if err := h.identity.RememberReturnPath(ctx, sid, c.Request.URL.Path, false); err != nil {
		log.WithError(err).Error("failed to store redirect after login")
	}
	h.unauthorized(c)
}

// upstreamError maps commerce API failures onto gateway responses
func (h *OrderHandler) upstreamError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, order.ErrInvalidOrderID):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
	case errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
	case errors.Is(err, commerce.ErrUnauthorized):
		h.tokenRejected(c)
	case errors.Is(err, commerce.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Order service temporarily unavailable",
		})
	default:
		h.logger.WithError(err).WithField("session_id", middleware.GetSessionID(c)).Error(message)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": message,
		})
	}
}
