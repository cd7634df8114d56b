// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-gateway/internal/domain/order"
	"github.com/your-org/storefront-gateway/internal/interfaces/http/middleware"
)

// DownloadInvoice handles GET /orders/:id/invoice
func (h *OrderHandler) DownloadInvoice(c *gin.Context) {
	shopper, ok := middleware.GetShopper(c)
	if !ok {
		h.unauthorized(c)
		return
	}

	invoice, err := h.orders.Invoice(c.Request.Context(), shopper.Token, order.ID(c.Param("id")))
	if err != nil {
		h.upstreamError(c, err, "Failed to generate invoice")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.Filename()))
	c.Header("Content-Length", strconv.Itoa(len(invoice.Data)))
	c.Data(http.StatusOK, invoice.ContentType, invoice.Data)
}
