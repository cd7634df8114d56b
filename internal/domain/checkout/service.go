// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/config"
	"github.com/your-org/storefront-gateway/internal/domain/auth"
	"github.com/your-org/storefront-gateway/internal/domain/cart"
	"github.com/your-org/storefront-gateway/internal/domain/order"
	"github.com/your-org/storefront-gateway/internal/domain/payment"
	"github.com/your-org/storefront-gateway/internal/domain/pricing"
	"github.com/your-org/storefront-gateway/internal/domain/session"
	"github.com/your-org/storefront-gateway/internal/pkg/alert"
	"github.com/your-org/storefront-gateway/internal/pkg/commerce"
	"github.com/your-org/storefront-gateway/internal/pkg/money"
)

// CartStore is the part of the cart the orchestrator reads and clears
type CartStore interface {
	Read(ctx context.Context, sessionID string) ([]cart.Line, error)
	Clear(ctx context.Context, sessionID string) error
}

// PriceReconciler obtains the authoritative summary of a cart
type PriceReconciler interface {
	Calculate(ctx context.Context, token string, items []pricing.Item) (*pricing.OrderSummary, error)
}

// OrderLifecycle creates orders and records their payment outcome
type OrderLifecycle interface {
	Create(ctx context.Context, token string, req order.CreateRequest) (*order.Order, error)
	MarkPaid(ctx context.Context, token string, o *order.Order) error
	MarkFailed(ctx context.Context, token string, o *order.Order) error
	Sync(ctx context.Context, token string, id order.ID) error
}

// IntentCreator obtains payment intents
type IntentCreator interface {
	Create(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error)
}

// PaymentConfirmer confirms an intent with the processor
type PaymentConfirmer interface {
	Confirm(ctx context.Context, req payment.ConfirmRequest) payment.Outcome
}

// Identity resolves the shopper behind a session
type Identity interface {
	Shopper(ctx context.Context, sessionID string) (*auth.Shopper, error)
	RememberReturnPath(ctx context.Context, sessionID, path string, checkout bool) error
}

// Dependencies are the collaborators of the orchestrator
type Dependencies struct {
	Redis    *redis.Client
	Sessions *session.Store
	Cart     CartStore
	Pricing  PriceReconciler
	Orders   OrderLifecycle
	Intents  IntentCreator
	Payments PaymentConfirmer
	Identity Identity
	Ledger   Ledger
	Alerts   alert.Notifier
}

// Request is a checkout submit
type Request struct {
	SessionID       string
	ShippingAddress order.ShippingAddress
	BillingName     string
	PaymentMethod   string
}

// Result is a successful checkout
type Result struct {
	AttemptID   string          `json:"attemptId"`
	OrderID     string          `json:"orderId"`
	Amount      decimal.Decimal `json:"amount"`
	AmountMinor int64           `json:"amountMinor"`
	Currency    string          `json:"currency"`
	ChargeID    string          `json:"chargeId,omitempty"`
	State       Snapshot        `json:"state"`
}

// Service sequences reconciliation, order creation, payment and finalization
type Service struct {
	deps     Dependencies
	config   config.CheckoutConfig
	currency string
	lock     *sessionLock
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewService creates a new checkout orchestrator
func NewService(deps Dependencies, cfg config.CheckoutConfig, currency string, logger logrus.FieldLogger) *Service {
	return &Service{
		deps:     deps,
		config:   cfg,
		currency: strings.ToLower(currency),
		lock:     newSessionLock(deps.Redis, cfg.LockTTL),
		logger:   logger,
		now:      time.Now,
	}
}

// attempt is the bookkeeping of one submit
type attempt struct {
	sessionID string
	state     State
	record    *CheckoutAttempt
	logger    logrus.FieldLogger
}

// Submit runs one checkout attempt. Every attempt creates a new order; a FAILED order is never reused.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	attemptID := uuid.NewString()

	acquired, err := s.lock.acquire(ctx, req.SessionID, attemptID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		current, err := s.Status(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		return nil, &InProgressError{Current: current}
	}
	defer func() {
		if err := s.lock.release(context.WithoutCancel(ctx), req.SessionID, attemptID); err != nil {
			s.logger.WithError(err).WithField("session_id", req.SessionID).Warn("failed to release checkout lock")
		}
	}()

	a := &attempt{
		sessionID: req.SessionID,
		state:     Idle{},
		record: &CheckoutAttempt{
			ID:        attemptID,
			SessionID: req.SessionID,
			Currency:  s.currency,
			State:     StateIdle,
		},
		logger: s.logger.WithFields(logrus.Fields{
			"session_id": req.SessionID,
			"attempt_id": attemptID,
		}),
	}
	if err := s.deps.Ledger.RecordAttempt(ctx, a.record); err != nil {
		return nil, err
	}

	return s.run(ctx, a, req)
}

func (s *Service) run(ctx context.Context, a *attempt, req Request) (*Result, error) {
	if err := s.transition(ctx, a, ValidatingInput{}); err != nil {
		return nil, err
	}

	address := req.ShippingAddress.Trimmed()
	lines, shopper, err := s.validate(ctx, a.sessionID, address, req)
	if err != nil {
		return nil, s.fail(ctx, a, err)
	}
	a.record.CustomerID = shopper.UserID

	if s.config.ShippingAddressCache {
		if err := s.deps.Sessions.SetJSON(ctx, a.sessionID, session.KeyShippingAddress, address); err != nil {
			a.logger.WithError(err).Warn("failed to cache shipping address")
		}
	}

	if err := s.transition(ctx, a, Reconciling{}); err != nil {
		return nil, err
	}
	items := make([]pricing.Item, len(lines))
	for i, l := range lines {
		items[i] = pricing.Item{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	summary, err := s.deps.Pricing.Calculate(ctx, shopper.Token, items)
	if err != nil {
		if errors.Is(err, commerce.ErrUnauthorized) {
			return nil, s.fail(ctx, a, s.authRequired(ctx, a.sessionID, err))
		}
		return nil, s.fail(ctx, a, &ReconciliationError{Err: err})
	}

	if err := s.transition(ctx, a, CreatingOrder{}); err != nil {
		return nil, err
	}
	createItems := make([]order.CreateItem, 0, len(summary.OrderItems))
	for _, item := range summary.Items() {
		createItems = append(createItems, order.CreateItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	created, err := s.deps.Orders.Create(ctx, shopper.Token, order.CreateRequest{
		CustomerID:      shopper.UserID,
		InfoID:          shopper.UserID,
		OrderItems:      createItems,
		ShippingAddress: address,
	})
	if err != nil {
		if errors.Is(err, commerce.ErrUnauthorized) {
			return nil, s.fail(ctx, a, s.authRequired(ctx, a.sessionID, err))
		}
		return nil, s.fail(ctx, a, &OrderCreationError{Err: err})
	}

	orderID := created.ID.String()
	amountMinor := money.ToMinorUnits(created.TotalAmount)
	a.record.OrderID = orderID
	a.record.AmountMinor = amountMinor
	a.logger = a.logger.WithField("order_id", orderID)
	if amountMinor != summary.TotalMinor() {
		a.logger.WithFields(logrus.Fields{
			"order_total":   amountMinor,
			"summary_total": summary.TotalMinor(),
		}).Warn("order total differs from reconciled summary, charging order total")
	}

	if err := s.transition(ctx, a, AwaitingPayment{OrderID: orderID}); err != nil {
		return nil, err
	}
	intent, err := s.deps.Intents.Create(ctx, payment.IntentRequest{
		AmountMinor: amountMinor,
		Currency:    s.currency,
		OrderID:     orderID,
	})
	if err != nil {
		s.markFailed(context.WithoutCancel(ctx), a, shopper.Token, created)
		return nil, s.fail(ctx, a, &PaymentError{
			Reason:  "We could not start your payment. You have not been charged.",
			OrderID: orderID,
			Err:     err,
		})
	}
	a.record.IntentID = intent.ID

	// Once the confirmation is sent the sequence runs to completion regardless of the caller.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FinalizeTimeout)
	defer cancel()

	outcome := s.deps.Payments.Confirm(fctx, payment.ConfirmRequest{
		Intent:      intent,
		Method:      req.PaymentMethod,
		BillingName: strings.TrimSpace(req.BillingName),
	})

	if err := s.transition(fctx, a, Finalizing{OrderID: orderID}); err != nil {
		return nil, err
	}

	if !outcome.OK() {
		if outcome.Ambiguous {
			a.logger.WithField("intent_id", intent.ID).Error("payment outcome is ambiguous, marking order failed")
			s.raiseAmbiguous(fctx, a, orderID, intent.ID)
		}
		s.markFailed(fctx, a, shopper.Token, created)
		return nil, s.fail(fctx, a, &PaymentError{Reason: outcome.Reason, OrderID: orderID})
	}
	a.record.ChargeID = outcome.ChargeID

	if err := s.markPaid(fctx, shopper.Token, created); err != nil {
		return nil, s.fail(fctx, a, s.deferFinalization(fctx, a, shopper.Token, err))
	}

	if err := s.deps.Cart.Clear(fctx, a.sessionID); err != nil {
		a.logger.WithError(err).Error("failed to clear cart after payment")
	}
	if err := s.deps.Orders.Sync(fctx, shopper.Token, created.ID); err != nil {
		a.logger.WithError(err).Warn("order sync failed")
	}

	if err := s.transition(fctx, a, Succeeded{OrderID: orderID}); err != nil {
		return nil, err
	}
	a.logger.WithField("amount_minor", amountMinor).Info("checkout succeeded")

	return &Result{
		AttemptID:   a.record.ID,
		OrderID:     orderID,
		Amount:      created.TotalAmount,
		AmountMinor: amountMinor,
		Currency:    s.currency,
		ChargeID:    outcome.ChargeID,
		State:       SnapshotOf(a.state, a.record.ID, s.now().UTC()),
	}, nil
}

// validate checks the form and cart locally, then resolves the shopper
func (s *Service) validate(ctx context.Context, sessionID string, address order.ShippingAddress, req Request) ([]cart.Line, *auth.Shopper, error) {
	if err := address.Validate(); err != nil {
		var fieldErr *order.AddressFieldError
		if errors.As(err, &fieldErr) {
			return nil, nil, &ValidationError{Field: fieldErr.Field, Message: fieldErr.Error()}
		}
		return nil, nil, err
	}
	if strings.TrimSpace(req.BillingName) == "" {
		return nil, nil, &ValidationError{Field: "billingName", Message: "Please fill in the name on card field."}
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, nil, &ValidationError{Field: "paymentMethod", Message: "Please enter your card details."}
	}

	lines, err := s.deps.Cart.Read(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, &ValidationError{Field: "cart", Message: "Your cart is empty."}
	}

	shopper, err := s.deps.Identity.Shopper(ctx, sessionID)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			return nil, nil, s.authRequired(ctx, sessionID, err)
		}
		return nil, nil, err
	}
	return lines, shopper, nil
}

// authRequired stores the post-login hint and drops a token the commerce API rejected
func (s *Service) authRequired(ctx context.Context, sessionID string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if errors.Is(cause, commerce.ErrUnauthorized) {
		if err := s.deps.Sessions.Remove(ctx, sessionID, session.KeyAuthToken); err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to drop rejected token")
		}
	}
	if err := s.deps.Identity.RememberReturnPath(ctx, sessionID, s.config.ReturnPath, true); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to store return path")
	}
	return &AuthError{ReturnPath: s.config.ReturnPath, Err: cause}
}

// markPaid retries the PAID update with exponential backoff
func (s *Service) markPaid(ctx context.Context, token string, o *order.Order) error {
	attempts := s.config.FinalizeAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := s.config.FinalizeBackoff

	var err error
	for i := 1; i <= attempts; i++ {
		if err = s.deps.Orders.MarkPaid(ctx, token, o); err == nil {
			return nil
		}
		if errors.Is(err, order.ErrTerminalOrder) || i == attempts {
			break
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": o.ID,
			"attempt":  i,
		}).Warn("failed to mark order paid, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (gave up: %v)", err, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// raiseAmbiguous asks ops to reconcile an order whose charge may still settle
func (s *Service) raiseAmbiguous(ctx context.Context, a *attempt, orderID, intentID string) {
	if err := s.deps.Alerts.Notify(ctx, alert.Alert{
		Type:      alert.AlertTypePaymentAmbiguous,
		Subject:   fmt.Sprintf("Order %s failed with an unconfirmed payment", orderID),
		OrderID:   orderID,
		SessionID: a.sessionID,
		Detail:    "payment intent " + intentID + " must be reconciled with the processor",
		RaisedAt:  s.now().UTC(),
	}); err != nil {
		a.logger.WithError(err).Error("failed to send payment alert")
	}
}

// deferFinalization queues the PAID update for the retrier. Money has moved, so the cart is cleared.
func (s *Service) deferFinalization(ctx context.Context, a *attempt, token string, cause error) error {
	orderID := a.record.OrderID
	now := s.now().UTC()

	pending := &PendingFinalization{
		OrderID:       orderID,
		AttemptID:     a.record.ID,
		SessionID:     a.sessionID,
		AuthToken:     token,
		Attempts:      s.config.FinalizeAttempts,
		LastError:     cause.Error(),
		NextAttemptAt: now.Add(s.config.RetryBackoff),
	}
	if err := s.deps.Ledger.QueueFinalization(ctx, pending); err != nil {
		a.logger.WithError(err).Error("failed to queue finalization retry")
	}

	if err := s.deps.Alerts.Notify(ctx, alert.Alert{
		Type:      alert.AlertTypeFinalizationPending,
		Subject:   fmt.Sprintf("Order %s paid but not finalized", orderID),
		OrderID:   orderID,
		SessionID: a.sessionID,
		Detail:    cause.Error(),
		RaisedAt:  now,
	}); err != nil {
		a.logger.WithError(err).Error("failed to send finalization alert")
	}

	if err := s.deps.Cart.Clear(ctx, a.sessionID); err != nil {
		a.logger.WithError(err).Error("failed to clear cart after payment")
	}

	return &FinalizationError{OrderID: orderID, Err: cause}
}

func (s *Service) markFailed(ctx context.Context, a *attempt, token string, o *order.Order) {
	if err := s.deps.Orders.MarkFailed(ctx, token, o); err != nil {
		a.logger.WithError(err).Error("failed to mark order failed")
	}
}

// transition moves the attempt to the next state and persists it
func (s *Service) transition(ctx context.Context, a *attempt, to State) error {
	if !CanTransition(a.state, to) {
		return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, a.state.Name(), to.Name())
	}
	a.state = to

	pctx := context.WithoutCancel(ctx)
	snapshot := SnapshotOf(to, a.record.ID, s.now().UTC())
	if err := s.deps.Sessions.SetJSON(pctx, a.sessionID, session.KeyCheckoutState, snapshot); err != nil {
		a.logger.WithError(err).Warn("failed to persist checkout state")
	}

	a.record.State = to.Name()
	if failed, ok := to.(Failed); ok {
		a.record.FailureKind = failed.Kind
		a.record.FailureReason = failed.Reason
	}
	if err := s.deps.Ledger.UpdateAttempt(pctx, a.record); err != nil {
		a.logger.WithError(err).Warn("failed to update checkout attempt")
	}

	a.logger.WithField("state", to.Name()).Debug("checkout state changed")
	return nil
}

// fail moves the attempt to Failed and returns cause
func (s *Service) fail(ctx context.Context, a *attempt, cause error) error {
	failed := Failed{
		Kind:    Kind(cause),
		Reason:  Message(cause),
		OrderID: a.record.OrderID,
	}
	if err := s.transition(ctx, a, failed); err != nil {
		return errors.Join(cause, err)
	}
	a.logger.WithError(cause).WithField("kind", failed.Kind).Warn("checkout failed")
	return cause
}

// Status returns the persisted state of the session's latest checkout
func (s *Service) Status(ctx context.Context, sessionID string) (Snapshot, error) {
	var snapshot Snapshot
	ok, err := s.deps.Sessions.GetJSON(ctx, sessionID, session.KeyCheckoutState, &snapshot)
	if err != nil {
		return Snapshot{}, err
	}
	if !ok {
		return SnapshotOf(Idle{}, "", s.now().UTC()), nil
	}
	return snapshot, nil
}

// LastShippingAddress returns the cached address for form pre-fill
func (s *Service) LastShippingAddress(ctx context.Context, sessionID string) (*order.ShippingAddress, bool, error) {
	var address order.ShippingAddress
	ok, err := s.deps.Sessions.GetJSON(ctx, sessionID, session.KeyShippingAddress, &address)
	if err != nil || !ok {
		return nil, false, err
	}
	return &address, true, nil
}

// Preview returns a fresh server summary of the cart for display
func (s *Service) Preview(ctx context.Context, sessionID string) (*pricing.OrderSummary, error) {
	lines, err := s.deps.Cart.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "cart", Message: "Your cart is empty."}
	}

	shopper, err := s.deps.Identity.Shopper(ctx, sessionID)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			return nil, s.authRequired(ctx, sessionID, err)
		}
		return nil, err
	}

	items := make([]pricing.Item, len(lines))
	for i, l := range lines {
		items[i] = pricing.Item{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	summary, err := s.deps.Pricing.Calculate(ctx, shopper.Token, items)
	if err != nil {
		if errors.Is(err, commerce.ErrUnauthorized) {
			return nil, s.authRequired(ctx, sessionID, err)
		}
		return nil, &ReconciliationError{Err: err}
	}
	return summary, nil
}

// Attempts lists the recorded checkout attempts of a session
func (s *Service) Attempts(ctx context.Context, sessionID string, limit int) ([]CheckoutAttempt, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.deps.Ledger.ListAttempts(ctx, sessionID, limit)
}
