// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/domain/checkout"
	"github.com/your-org/storefront-gateway/internal/domain/order"
	"github.com/your-org/storefront-gateway/internal/domain/pricing"
	"github.com/your-org/storefront-gateway/internal/interfaces/http/middleware"
)

// CheckoutService is the orchestrator surface the handler needs
type CheckoutService interface {
	Submit(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	Status(ctx context.Context, sessionID string) (checkout.Snapshot, error)
	LastShippingAddress(ctx context.Context, sessionID string) (*order.ShippingAddress, bool, error)
	Preview(ctx context.Context, sessionID string) (*pricing.OrderSummary, error)
	Attempts(ctx context.Context, sessionID string, limit int) ([]checkout.CheckoutAttempt, error)
}

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	checkout  CheckoutService
	loginPath string
	logger    logrus.FieldLogger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(service CheckoutService, loginPath string, logger logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:  service,
		loginPath: loginPath,
		logger:    logger,
	}
}

// SubmitRequest is the body of POST /checkout
type SubmitRequest struct {
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	BillingName     string                `json:"billingName"`
	PaymentMethod   string                `json:"paymentMethod"`
}

// Submit handles POST /checkout
func (h *CheckoutHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.checkout.Submit(c.Request.Context(), checkout.Request{
		SessionID:       middleware.GetSessionID(c),
		ShippingAddress: req.ShippingAddress,
		BillingName:     req.BillingName,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment successful",
		"data":    result,
	})
}

// Status handles GET /checkout/status
func (h *CheckoutHandler) Status(c *gin.Context) {
	status, err := h.checkout.Status(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout status retrieved successfully",
		"data":    status,
	})
}

// ShippingAddress handles GET /checkout/shipping-address
func (h *CheckoutHandler) ShippingAddress(c *gin.Context) {
	address, ok, err := h.checkout.LastShippingAddress(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No saved shipping address",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Shipping address retrieved successfully",
		"data":    address,
	})
}

// Attempts handles GET /checkout/attempts
func (h *CheckoutHandler) Attempts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be between 1 and 100",
		})
		return
	}

	attempts, err := h.checkout.Attempts(c.Request.Context(), middleware.GetSessionID(c), limit)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout attempts retrieved successfully",
		"data":    attempts,
	})
}

// Summary handles POST /cart/summary with a fresh server-priced summary
func (h *CheckoutHandler) Summary(c *gin.Context) {
	summary, err := h.checkout.Preview(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order summary calculated successfully",
		"data":    summary,
	})
}

// renderError turns any checkout error into one status message field
func (h *CheckoutHandler) renderError(c *gin.Context, err error) {
	kind := checkout.Kind(err)
	body := gin.H{
		"error": checkout.Message(err),
		"kind":  kind,
	}

	var (
		validationErr   *checkout.ValidationError
		paymentErr      *checkout.PaymentError
		finalizationErr *checkout.FinalizationError
		inProgressErr   *checkout.InProgressError
	)

	status := http.StatusInternalServerError
	switch kind {
	case checkout.KindValidation:
		status = http.StatusUnprocessableEntity
		if errors.As(err, &validationErr) {
			body["field"] = validationErr.Field
		}
	case checkout.KindAuth:
		status = http.StatusUnauthorized
		body["redirect"] = h.loginPath
	case checkout.KindReconciliation, checkout.KindOrderCreation:
		status = http.StatusBadGateway
	case checkout.KindPayment:
		status = http.StatusPaymentRequired
		if errors.As(err, &paymentErr) {
			body["orderId"] = paymentErr.OrderID
		}
	case checkout.KindFinalization:
		status = http.StatusAccepted
		if errors.As(err, &finalizationErr) {
			body["orderId"] = finalizationErr.OrderID
		}
	case checkout.KindInProgress:
		status = http.StatusConflict
		if errors.As(err, &inProgressErr) {
			body["state"] = inProgressErr.Current
		}
	}

	entry := h.logger.WithError(err).WithFields(logrus.Fields{
		"session_id": middleware.GetSessionID(c),
		"kind":       kind,
	})
	if status >= http.StatusInternalServerError || kind == checkout.KindFinalization {
		entry.Error("checkout request failed")
	} else {
		entry.Info("checkout request rejected")
	}

	c.JSON(status, body)
}
