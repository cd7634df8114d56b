// internal/domain/checkout/errors.go
package checkout

import (
	"errors"
	"fmt"
)

// ErrorKind classifies checkout failures for rendering
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindReconciliation ErrorKind = "reconciliation"
	KindOrderCreation  ErrorKind = "order_creation"
	KindPayment        ErrorKind = "payment"
	KindFinalization   ErrorKind = "finalization"
	KindAuth           ErrorKind = "auth"
	KindInProgress     ErrorKind = "in_progress"
	KindInternal       ErrorKind = "internal"
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrIllegalTransition  = errors.New("illegal transition of checkout state")
)

// ValidationError is a local input problem; nothing was sent over the network
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ReconciliationError means no fresh server total could be obtained; no order was created
type ReconciliationError struct {
	Err error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("price reconciliation failed: %v", e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// OrderCreationError means the order could not be created; no payment was attempted
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("order creation failed: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// PaymentError means the processor declined or errored; the order is marked FAILED and the cart kept
type PaymentError struct {
	Reason  string
	OrderID string
	Err     error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment for order %s failed: %s", e.OrderID, e.Reason)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// FinalizationError means payment succeeded but the order could not be marked PAID.
// The update is queued for retry under the same order id.
type FinalizationError struct {
	OrderID string
	Err     error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("payment captured but order %s could not be finalized: %v", e.OrderID, e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }

// AuthError means the shopper must log in again; ReturnPath is where to come back to
type AuthError struct {
	ReturnPath string
	Err        error
}

func (e *AuthError) Error() string {
	return "authentication required"
}

func (e *AuthError) Unwrap() error { return e.Err }

// InProgressError is returned for a submit while another one runs, with the running state
type InProgressError struct {
	Current Snapshot
}

func (e *InProgressError) Error() string {
	return fmt.Sprintf("%s (state %s)", ErrCheckoutInProgress, e.Current.State)
}

func (e *InProgressError) Is(target error) bool {
	return target == ErrCheckoutInProgress
}

// Kind maps any checkout error to its kind
func Kind(err error) ErrorKind {
	var (
		validationErr     *ValidationError
		reconciliationErr *ReconciliationError
		orderErr          *OrderCreationError
		paymentErr        *PaymentError
		finalizationErr   *FinalizationError
		authErr           *AuthError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &reconciliationErr):
		return KindReconciliation
	case errors.As(err, &orderErr):
		return KindOrderCreation
	case errors.As(err, &paymentErr):
		return KindPayment
	case errors.As(err, &finalizationErr):
		return KindFinalization
	case errors.Is(err, ErrCheckoutInProgress):
		return KindInProgress
	default:
		return KindInternal
	}
}

// Message returns the single shopper-facing status message for an error
func Message(err error) string {
	var (
		validationErr   *ValidationError
		paymentErr      *PaymentError
		finalizationErr *FinalizationError
	)

	switch Kind(err) {
	case KindValidation:
		errors.As(err, &validationErr)
		return validationErr.Message
	case KindReconciliation:
		return "We could not confirm current prices for your cart. Please try again."
	case KindOrderCreation:
		return "We could not create your order. You have not been charged. Please try again."
	case KindPayment:
		errors.As(err, &paymentErr)
		return paymentErr.Reason
	case KindFinalization:
		errors.As(err, &finalizationErr)
		return fmt.Sprintf("Your payment was received but we are still confirming order %s. No further action is needed; do not pay again.", finalizationErr.OrderID)
	case KindAuth:
		return "Please log in to continue checkout."
	case KindInProgress:
		return "Your checkout is already being processed."
	default:
		return "Something went wrong. Please try again later."
	}
}
