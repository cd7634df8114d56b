// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/domain/cart"
	"github.com/your-org/storefront-gateway/internal/interfaces/http/middleware"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	cart     *cart.Store
	products cart.ProductSource
	logger   logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(store *cart.Store, products cart.ProductSource, logger logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		cart:     store,
		products: products,
		logger:   logger,
	}
}

// AddItemRequest is the body of POST /cart/items
type AddItemRequest struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
	Quantity  *int  `json:"quantity" binding:"omitempty,gte=1,lte=999"`
}

// UpdateItemRequest is the body of PUT /cart/items/:productId
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	view, err := h.cart.View(c.Request.Context(), middleware.GetSessionID(c), h.products)
	if err != nil {
		h.internalError(c, err, "Failed to retrieve cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    view,
	})
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	lines, err := h.cart.AddLine(c.Request.Context(), middleware.GetSessionID(c), req.ProductID, quantity)
	if err != nil {
		h.mutationError(c, err)
		return
	}

	h.respondLines(c, "Item added to cart successfully", lines)
}

// UpdateItem handles PUT /cart/items/:productId
func (h *CartHandler) UpdateItem(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	lines, err := h.cart.SetQuantity(c.Request.Context(), middleware.GetSessionID(c), productID, *req.Quantity)
	if err != nil {
		h.mutationError(c, err)
		return
	}

	h.respondLines(c, "Cart item updated successfully", lines)
}

// RemoveItem handles DELETE /cart/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	lines, err := h.cart.RemoveLine(c.Request.Context(), middleware.GetSessionID(c), productID)
	if err != nil {
		h.mutationError(c, err)
		return
	}

	h.respondLines(c, "Item removed from cart successfully", lines)
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		h.internalError(c, err, "Failed to clear cart")
		return
	}

	h.respondLines(c, "Cart cleared successfully", []cart.Line{})
}

// Events handles GET /cart/events, streaming cart-changed events as server-sent events
func (h *CartHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	sid := middleware.GetSessionID(c)

	sub, err := h.cart.Subscribe(ctx, sid)
	if err != nil {
		h.internalError(c, err, "Failed to subscribe to cart events")
		return
	}
	defer sub.Close()

	count, err := h.cart.Count(ctx, sid)
	if err != nil {
		h.internalError(c, err, "Failed to retrieve cart")
		return
	}

	// streams outlive the server WriteTimeout
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.WithError(err).WithField("session_id", sid).Debug("cannot clear write deadline for cart events")
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"count": count})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		}
	})
}

func (h *CartHandler) respondLines(c *gin.Context, message string, lines []cart.Line) {
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data": gin.H{
			"lines": lines,
			"count": cart.Count(lines),
		},
	})
}

func (h *CartHandler) mutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidProduct), errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, cart.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
	default:
		h.internalError(c, err, "Failed to update cart")
	}
}

func (h *CartHandler) internalError(c *gin.Context, err error, message string) {
	h.logger.WithError(err).WithField("session_id", middleware.GetSessionID(c)).Error(message)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": message,
	})
}

func productIDParam(c *gin.Context) (int64, bool) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product ID",
		})
		return 0, false
	}
	return productID, true
}
