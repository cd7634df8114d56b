package checkout

import (
	"context"
	"time"

	"github.com/your-org/storefront-gateway/internal/domain/auth"
	"github.com/your-org/storefront-gateway/internal/domain/order"
	"github.com/your-org/storefront-gateway/internal/domain/payment"
	"github.com/your-org/storefront-gateway/internal/domain/pricing"
	"github.com/your-org/storefront-gateway/internal/pkg/alert"
)

// callLog records the order of collaborator calls across fakes
type callLog struct{ calls []string }

func (l *callLog) add(name string) { l.calls = append(l.calls, name) }

type fakePricing struct {
	log     *callLog
	summary *pricing.OrderSummary
	err     error
	items   []pricing.Item
	tokens  []string
}

func (f *fakePricing) Calculate(_ context.Context, token string, items []pricing.Item) (*pricing.OrderSummary, error) {
	f.log.add("calculate")
	f.items = items
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

type fakeOrders struct {
	log       *callLog
	created   *order.Order
	createErr error
	createReq order.CreateRequest
	paidErr   error
	paidCalls int
	statuses  []order.OrderStatus
	synced    []order.ID
}

func (f *fakeOrders) Create(_ context.Context, _ string, req order.CreateRequest) (*order.Order, error) {
	f.log.add("create")
	f.createReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	o := *f.created
	return &o, nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, _ string, o *order.Order) error {
	f.log.add("paid")
	f.paidCalls++
	if f.paidErr != nil {
		return f.paidErr
	}
	o.Status = order.OrderStatusPaid
	f.statuses = append(f.statuses, order.OrderStatusPaid)
	return nil
}

func (f *fakeOrders) MarkFailed(_ context.Context, _ string, o *order.Order) error {
	f.log.add("failed")
	o.Status = order.OrderStatusFailed
	f.statuses = append(f.statuses, order.OrderStatusFailed)
	return nil
}

func (f *fakeOrders) Sync(_ context.Context, _ string, id order.ID) error {
	f.log.add("sync")
	f.synced = append(f.synced, id)
	return nil
}

type fakeIntents struct {
	log      *callLog
	requests []payment.IntentRequest
	err      error
	onCreate func()
}

func (f *fakeIntents) Create(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	f.log.add("intent")
	f.requests = append(f.requests, req)
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Intent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret_abc",
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		OrderID:      req.OrderID,
	}, nil
}

type fakePayments struct {
	log      *callLog
	outcome  payment.Outcome
	requests []payment.ConfirmRequest
	ctxErr   error
}

func (f *fakePayments) Confirm(ctx context.Context, req payment.ConfirmRequest) payment.Outcome {
	f.log.add("confirm")
	f.requests = append(f.requests, req)
	f.ctxErr = ctx.Err()
	return f.outcome
}

type fakeIdentity struct {
	shopper    *auth.Shopper
	err        error
	returnPath string
	checkout   bool
}

func (f *fakeIdentity) Shopper(context.Context, string) (*auth.Shopper, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shopper, nil
}

func (f *fakeIdentity) RememberReturnPath(_ context.Context, _, path string, checkout bool) error {
	f.returnPath = path
	f.checkout = checkout
	return nil
}

type fakeLedger struct {
	attempts map[string]CheckoutAttempt
	pending  []PendingFinalization
	resolved map[uint]time.Time
	resched  map[uint]int
	listed   string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		attempts: map[string]CheckoutAttempt{},
		resolved: map[uint]time.Time{},
		resched:  map[uint]int{},
	}
}

func (f *fakeLedger) RecordAttempt(_ context.Context, a *CheckoutAttempt) error {
	f.attempts[a.ID] = *a
	return nil
}

func (f *fakeLedger) UpdateAttempt(_ context.Context, a *CheckoutAttempt) error {
	f.attempts[a.ID] = *a
	return nil
}

func (f *fakeLedger) ResolveAttempt(_ context.Context, id string, state StateName) error {
	a := f.attempts[id]
	a.State = state
	a.FailureKind = ""
	a.FailureReason = ""
	f.attempts[id] = a
	return nil
}

func (f *fakeLedger) ListAttempts(_ context.Context, sessionID string, _ int) ([]CheckoutAttempt, error) {
	f.listed = sessionID
	var out []CheckoutAttempt
	for _, a := range f.attempts {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeLedger) QueueFinalization(_ context.Context, p *PendingFinalization) error {
	p.ID = uint(len(f.pending) + 1)
	f.pending = append(f.pending, *p)
	return nil
}

func (f *fakeLedger) DueFinalizations(_ context.Context, now time.Time, limit int) ([]PendingFinalization, error) {
	var due []PendingFinalization
	for _, p := range f.pending {
		if _, done := f.resolved[p.ID]; done {
			continue
		}
		if !p.NextAttemptAt.After(now) && len(due) < limit {
			due = append(due, p)
		}
	}
	return due, nil
}

func (f *fakeLedger) MarkFinalized(_ context.Context, id uint, at time.Time) error {
	f.resolved[id] = at
	return nil
}

func (f *fakeLedger) RescheduleFinalization(_ context.Context, id uint, attempts int, lastErr string, next time.Time) error {
	f.resched[id] = attempts
	for i := range f.pending {
		if f.pending[i].ID == id {
			f.pending[i].Attempts = attempts
			f.pending[i].LastError = lastErr
			f.pending[i].NextAttemptAt = next
		}
	}
	return nil
}

type fakeAlerts struct{ sent []alert.Alert }

func (f *fakeAlerts) Notify(_ context.Context, a alert.Alert) error {
	f.sent = append(f.sent, a)
	return nil
}
