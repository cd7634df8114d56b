// internal/domain/payment/entity.go
package payment

import (
	"errors"
	"strings"
)

// ErrInvalidClientSecret is returned when the intent handshake token is malformed
var ErrInvalidClientSecret = errors.New("invalid payment intent client secret")

// IntentRequest asks for a payment intent of exactly AmountMinor, bound to an order
type IntentRequest struct {
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	OrderID     string `json:"orderId,omitempty"`
}

// Intent is a single-use payment handshake
type Intent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	OrderID      string
}

// ParseClientSecret validates a client secret of the form <intent id>_secret_<random> and returns the intent id
func ParseClientSecret(secret string) (string, error) {
	id, rest, ok := strings.Cut(secret, "_secret_")
	if !ok || id == "" || rest == "" || strings.ContainsAny(secret, " /?#&") {
		return "", ErrInvalidClientSecret
	}
	return id, nil
}

// ConfirmRequest carries everything the processor needs to confirm an intent
type ConfirmRequest struct {
	Intent *Intent
	// Method is the card capture: a single-use card token (tok_...) or a payment method id (pm_...)
	Method      string
	BillingName string
}

// Outcome is the two-case result of a confirmation: success or failure with a shopper-facing reason
type Outcome struct {
	succeeded bool
	IntentID  string
	ChargeID  string
	Reason    string
	// Ambiguous marks failures where the processor may still have captured the payment
	Ambiguous bool
}

// Succeeded builds a success outcome
func Succeeded(intentID, chargeID string) Outcome {
	return Outcome{succeeded: true, IntentID: intentID, ChargeID: chargeID}
}

// Failed builds a failure outcome
func Failed(reason string) Outcome {
	if strings.TrimSpace(reason) == "" {
		reason = "Your payment could not be completed."
	}
	return Outcome{Reason: reason}
}

// OK reports whether the payment succeeded
func (o Outcome) OK() bool {
	return o.succeeded
}
