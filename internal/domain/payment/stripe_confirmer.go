// internal/domain/payment/stripe_confirmer.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/config"
)

// StripeConfirmer confirms payment intents against a Stripe-compatible API using
// the publishable key and the intent's client secret. It never touches orders.
type StripeConfirmer struct {
	baseURL        string
	publishableKey string
	httpClient     *http.Client
	logger         logrus.FieldLogger
}

// NewStripeConfirmer creates a new payment confirmation adapter
func NewStripeConfirmer(cfg config.PaymentConfig, httpClient *http.Client, logger logrus.FieldLogger) *StripeConfirmer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &StripeConfirmer{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		publishableKey: cfg.PublishableKey,
		httpClient:     httpClient,
		logger:         logger,
	}
}

type confirmResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	LatestCharge string `json:"latest_charge"`
	Error        *struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Type        string `json:"type"`
	} `json:"error"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// Confirm sends the card capture for the intent and reports the outcome
func (c *StripeConfirmer) Confirm(ctx context.Context, req ConfirmRequest) Outcome {
	if req.Intent == nil {
		return Failed("Payment could not be started. Please try again.")
	}

	form, err := confirmForm(req)
	if err != nil {
		return Failed(invalidMethodReason)
	}

	log := c.logger.WithFields(logrus.Fields{
		"intent_id": req.Intent.ID,
		"order_id":  req.Intent.OrderID,
	})

	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s/confirm", c.baseURL, url.PathEscape(req.Intent.ID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Failed("Payment could not be started. Please try again.")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.publishableKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.WithError(err).Error("payment confirmation request failed")
		return ambiguous()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Error("failed to read payment confirmation response")
		return ambiguous()
	}

	var parsed confirmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.WithField("status", resp.StatusCode).Error("unreadable payment confirmation response")
		if resp.StatusCode >= 500 {
			return ambiguous()
		}
		return Failed("Your payment could not be completed.")
	}

	log = log.WithFields(logrus.Fields{
		"http_status":   resp.StatusCode,
		"intent_status": parsed.Status,
		"latency":       time.Since(start),
	})

	if parsed.Error != nil {
		log.WithFields(logrus.Fields{
			"code":         parsed.Error.Code,
			"decline_code": parsed.Error.DeclineCode,
		}).Warn("payment declined")
		return Failed(parsed.Error.Message)
	}
	if resp.StatusCode >= 500 {
		log.Error("payment processor error")
		return ambiguous()
	}

	switch parsed.Status {
	case "succeeded":
		log.Info("payment succeeded")
		return Succeeded(parsed.ID, parsed.LatestCharge)
	case "requires_action":
		return Failed("Your card requires additional authentication, which is not supported here. Please use another card.")
	case "processing":
		log.Warn("payment still processing at confirmation")
		return ambiguous()
	default:
		if parsed.LastPaymentError != nil {
			return Failed(parsed.LastPaymentError.Message)
		}
		return Failed("Your payment could not be completed.")
	}
}

// ambiguous is a failure whose charge may still settle; the order is not placed either way
func ambiguous() Outcome {
	out := Failed(ambiguousReason)
	out.Ambiguous = true
	return out
}

func confirmForm(req ConfirmRequest) (url.Values, error) {
	form := url.Values{}
	form.Set("client_secret", req.Intent.ClientSecret)

	method := strings.TrimSpace(req.Method)
	switch {
	case strings.HasPrefix(method, "tok_"):
		form.Set("payment_method_data[type]", "card")
		form.Set("payment_method_data[card][token]", method)
		if name := strings.TrimSpace(req.BillingName); name != "" {
			form.Set("payment_method_data[billing_details][name]", name)
		}
	case strings.HasPrefix(method, "pm_"):
		form.Set("payment_method", method)
	default:
		return nil, errInvalidMethod
	}

	return form, nil
}

var errInvalidMethod = errors.New("payment method must be a card token or payment method id")

const (
	invalidMethodReason = "Your card details are invalid. Please re-enter them."
	ambiguousReason     = "We could not confirm your payment, so your order was not placed. If your card shows a charge, our support team will refund it."
)
