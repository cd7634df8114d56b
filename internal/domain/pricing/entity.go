// internal/domain/pricing/entity.go
package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-gateway/internal/pkg/money"
)

// Item is a product/quantity pair sent for pricing
type Item struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// SummaryLine is one server-priced line of an OrderSummary
type SummaryLine struct {
	ProductID   int64           `json:"productId" validate:"required,gt=0"`
	Quantity    int             `json:"quantity" validate:"required,gte=1"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// OrderSummary is the authoritative server pricing of a cart
type OrderSummary struct {
	OrderItems  []SummaryLine   `json:"orderItems" validate:"required,min=1,dive"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// TotalMinor returns the grand total in minor currency units
func (s *OrderSummary) TotalMinor() int64 {
	return money.ToMinorUnits(s.TotalAmount)
}

// Items returns the product/quantity pairs the summary prices
func (s *OrderSummary) Items() []Item {
	items := make([]Item, len(s.OrderItems))
	for i, l := range s.OrderItems {
		items[i] = Item{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return items
}

type calculateRequest struct {
	OrderItems []Item `json:"orderItems"`
}
