// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/pkg/commerce"
)

var (
	// ErrTerminalOrder is returned for a transition out of PAID or FAILED
	ErrTerminalOrder = errors.New("order is already in a terminal state")
	// ErrUnexpectedOrder is returned when a created order is not PENDING with a positive total
	ErrUnexpectedOrder = errors.New("unexpected order from commerce api")
	// ErrOrderNotFound is returned when the commerce API has no such order
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidOrderID is returned for ids that cannot be sent to the commerce API
	ErrInvalidOrderID = errors.New("invalid order id")
)

// Caller is the subset of the commerce client the order service needs
type Caller interface {
	Do(ctx context.Context, method, path, token string, body interface{}) (*commerce.Response, error)
	DoJSON(ctx context.Context, method, path, token string, body, out interface{}) error
}

// Service manages the PENDING to PAID/FAILED lifecycle of server orders
type Service struct {
	api      Caller
	validate *validator.Validate
	logger   logrus.FieldLogger
}

// NewService creates a new order lifecycle client
func NewService(api Caller, logger logrus.FieldLogger) *Service {
	return &Service{
		api:      api,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create creates a PENDING order. Its TotalAmount is the amount to charge.
func (s *Service) Create(ctx context.Context, token string, req CreateRequest) (*Order, error) {
	if len(req.OrderItems) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		return nil, err
	}

	var created Order
	if err := s.api.DoJSON(ctx, http.MethodPost, "/orders", token, req, &created); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.validate.Struct(&created); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedOrder, err)
	}
	if !created.ID.Valid() {
		return nil, fmt.Errorf("%w: id %q", ErrUnexpectedOrder, created.ID)
	}
	if created.Status != OrderStatusPending {
		return nil, fmt.Errorf("%w: status %s, expected %s", ErrUnexpectedOrder, created.Status, OrderStatusPending)
	}
	if !created.TotalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: total %s is not positive", ErrUnexpectedOrder, created.TotalAmount)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": created.ID,
		"total":    created.TotalAmount.StringFixed(2),
	}).Info("order created")

	return &created, nil
}

// MarkPaid records a successful payment. Repeating it for the same order is safe.
func (s *Service) MarkPaid(ctx context.Context, token string, o *Order) error {
	return s.setStatus(ctx, token, o, OrderStatusPaid)
}

// MarkFailed records a failed payment
func (s *Service) MarkFailed(ctx context.Context, token string, o *Order) error {
	return s.setStatus(ctx, token, o, OrderStatusFailed)
}

func (s *Service) setStatus(ctx context.Context, token string, o *Order, status OrderStatus) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: order %s is %s", ErrTerminalOrder, o.ID, o.Status)
	}
	if !o.ID.Valid() {
		return ErrInvalidOrderID
	}

	path := "/orders/" + url.PathEscape(o.ID.String())
	if err := s.api.DoJSON(ctx, http.MethodPut, path, token, statusUpdateRequest{Status: status}, nil); err != nil {
		return fmt.Errorf("failed to set order %s to %s: %w", o.ID, status, err)
	}

	o.Status = status
	s.logger.WithFields(logrus.Fields{
		"order_id": o.ID,
		"status":   status,
	}).Info("order status updated")
	return nil
}

// Sync asks the commerce API to propagate a paid order downstream
func (s *Service) Sync(ctx context.Context, token string, id ID) error {
	if !id.Valid() {
		return ErrInvalidOrderID
	}
	path := fmt.Sprintf("/orders/%s/sync", url.PathEscape(id.String()))
	if err := s.api.DoJSON(ctx, http.MethodPost, path, token, struct{}{}, nil); err != nil {
		return fmt.Errorf("failed to sync order %s: %w", id, err)
	}
	return nil
}

// Invoice fetches the rendered invoice of an order
func (s *Service) Invoice(ctx context.Context, token string, id ID) (*Invoice, error) {
	if !id.Valid() {
		return nil, ErrInvalidOrderID
	}
	path := "/payments/generate-invoice/" + url.PathEscape(id.String())
	resp, err := s.api.Do(ctx, http.MethodPost, path, token, struct{}{})
	if err != nil {
		return nil, mapNotFound(fmt.Errorf("failed to generate invoice for order %s: %w", id, err))
	}

	contentType := resp.ContentType
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = "application/pdf"
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("empty invoice for order %s", id)
	}

	return &Invoice{OrderID: id, ContentType: contentType, Data: resp.Body}, nil
}

// ListForCustomer returns the order history of a customer
func (s *Service) ListForCustomer(ctx context.Context, token, customerID string) ([]Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	var orders []Order
	path := "/orders/info/" + url.PathEscape(customerID)
	if err := s.api.DoJSON(ctx, http.MethodGet, path, token, nil, &orders); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// Get returns one order
func (s *Service) Get(ctx context.Context, token string, id ID) (*Order, error) {
	if !id.Valid() {
		return nil, ErrInvalidOrderID
	}
	var o Order
	if err := s.api.DoJSON(ctx, http.MethodGet, "/orders/"+url.PathEscape(id.String()), token, nil, &o); err != nil {
		return nil, mapNotFound(fmt.Errorf("failed to get order %s: %w", id, err))
	}
	return &o, nil
}

func mapNotFound(err error) error {
	var apiErr *commerce.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	}
	return err
}
