// internal/domain/payment/intent.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/your-org/storefront-gateway/internal/pkg/commerce"
)

// Caller is the subset of the commerce client the intent service needs
type Caller interface {
	Do(ctx context.Context, method, path, token string, body interface{}) (*commerce.Response, error)
}

// IntentService obtains payment intents from the commerce payments endpoint
type IntentService struct {
	api Caller
}

// NewIntentService creates a new payment intent service
func NewIntentService(api Caller) *IntentService {
	return &IntentService{api: api}
}

// Create requests an intent for req.AmountMinor. The endpoint is public, so no token is sent.
func (s *IntentService) Create(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %d", req.AmountMinor)
	}
	req.Currency = strings.ToLower(req.Currency)

	resp, err := s.api.Do(ctx, http.MethodPost, "/payments/create-payment-intent", "", req)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	secret := extractClientSecret(resp.Body)
	id, err := ParseClientSecret(secret)
	if err != nil {
		return nil, err
	}

	return &Intent{
		ID:           id,
		ClientSecret: secret,
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		OrderID:      req.OrderID,
	}, nil
}

// extractClientSecret accepts a bare JSON string, an object with a clientSecret field, or raw text
func extractClientSecret(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	switch body[0] {
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return strings.TrimSpace(s)
		}
	case '{':
		var obj struct {
			ClientSecret      string `json:"clientSecret"`
			ClientSecretSnake string `json:"client_secret"`
		}
		if err := json.Unmarshal(body, &obj); err == nil {
			if obj.ClientSecret != "" {
				return obj.ClientSecret
			}
			return obj.ClientSecretSnake
		}
		return ""
	}

	return string(body)
}
