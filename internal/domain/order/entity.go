// internal/domain/order/entity.go
package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the order status as seen by the storefront
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

// IsTerminal reports whether no further storefront-initiated transition is legal
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// UnmarshalJSON accepts any letter case from the commerce API
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// ID is an order identifier. The commerce API may send it as a number or a string.
type ID string

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// UnmarshalJSON accepts both numeric and string ids
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a string
func (id ID) String() string {
	return string(id)
}

// Valid reports whether the id is safe to place in a request path
func (id ID) Valid() bool {
	return idPattern.MatchString(string(id))
}

// ShippingAddress is where the order ships. All fields are mandatory.
type ShippingAddress struct {
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
}

// AddressFieldError names the first missing shipping field
type AddressFieldError struct {
	Field string
}

func (e *AddressFieldError) Error() string {
	return fmt.Sprintf("Please fill in the %s field.", fieldLabel(e.Field))
}

// Validate returns the first empty field, in form order
func (a ShippingAddress) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"streetAddress", a.StreetAddress},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &AddressFieldError{Field: f.name}
		}
	}
	return nil
}

// Trimmed returns a copy with surrounding whitespace removed from every field
func (a ShippingAddress) Trimmed() ShippingAddress {
	return ShippingAddress{
		StreetAddress: strings.TrimSpace(a.StreetAddress),
		City:          strings.TrimSpace(a.City),
		State:         strings.TrimSpace(a.State),
		PostalCode:    strings.TrimSpace(a.PostalCode),
		Country:       strings.TrimSpace(a.Country),
	}
}

// fieldLabel turns "postalCode" into "postal code"
func fieldLabel(field string) string {
	var b strings.Builder
	for _, r := range field {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// OrderItem is a line of a server order
type OrderItem struct {
	ProductID   int64           `json:"productId" validate:"required,gt=0"`
	Quantity    int             `json:"quantity" validate:"required,gte=1"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Order is the server order as referenced by the storefront
type Order struct {
	ID              ID               `json:"id" validate:"required"`
	Status          OrderStatus      `json:"status" validate:"required"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	CustomerID      string           `json:"customerId,omitempty"`
	OrderItems      []OrderItem      `json:"orderItems,omitempty" validate:"omitempty,dive"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	OrderDate       *time.Time       `json:"orderDate,omitempty"`
}

// CreateItem is a product/quantity pair of a create-order request
type CreateItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateRequest creates a PENDING order
type CreateRequest struct {
	CustomerID      string          `json:"customerId"`
	InfoID          string          `json:"infoId"`
	OrderItems      []CreateItem    `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
}

// Invoice is a rendered invoice document
type Invoice struct {
	OrderID     ID
	ContentType string
	Data        []byte
}

// Filename is the download name of the invoice
func (i *Invoice) Filename() string {
	return fmt.Sprintf("invoice-%s.pdf", i.OrderID)
}

type statusUpdateRequest struct {
	Status OrderStatus `json:"status"`
}
