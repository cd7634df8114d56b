// internal/domain/checkout/retrier.go
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/config"
	"github.com/your-org/storefront-gateway/internal/domain/order"
	"github.com/your-org/storefront-gateway/internal/pkg/alert"
)

const maxRetryBackoff = time.Hour

// OrderFinalizer records PAID on an order by id
type OrderFinalizer interface {
	MarkPaid(ctx context.Context, token string, o *order.Order) error
	Sync(ctx context.Context, token string, id order.ID) error
}

// FinalizationRetrier drains the pending finalization queue until every paid order is recorded as PAID
type FinalizationRetrier struct {
	ledger       Ledger
	orders       OrderFinalizer
	alerts       alert.Notifier
	config       config.CheckoutConfig
	serviceToken string
	logger       logrus.FieldLogger
	now          func() time.Time
}

// NewFinalizationRetrier creates a new retrier. serviceToken, when set, is used instead of the shopper's token.
func NewFinalizationRetrier(ledger Ledger, orders OrderFinalizer, alerts alert.Notifier, cfg config.CheckoutConfig, serviceToken string, logger logrus.FieldLogger) *FinalizationRetrier {
	return &FinalizationRetrier{
		ledger:       ledger,
		orders:       orders,
		alerts:       alerts,
		config:       cfg,
		serviceToken: serviceToken,
		logger:       logger,
		now:          time.Now,
	}
}

// Run polls the queue every RetryInterval until ctx is done
func (r *FinalizationRetrier) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	r.logger.WithField("interval", r.config.RetryInterval).Info("finalization retrier started")

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.WithError(err).Error("finalization retry pass failed")
		}

		select {
		case <-ctx.Done():
			r.logger.Info("finalization retrier stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce retries every due row once and returns how many were finalized
func (r *FinalizationRetrier) RunOnce(ctx context.Context) (int, error) {
	due, err := r.ledger.DueFinalizations(ctx, r.now().UTC(), r.config.RetryBatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range due {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		ok, err := r.retry(ctx, &due[i])
		if err != nil {
			return resolved, err
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}

func (r *FinalizationRetrier) retry(ctx context.Context, row *PendingFinalization) (bool, error) {
	logger := r.logger.WithFields(logrus.Fields{
		"order_id":   row.OrderID,
		"session_id": row.SessionID,
		"attempts":   row.Attempts,
	})

	token := r.serviceToken
	if token == "" {
		token = row.AuthToken
	}

	o := &order.Order{ID: order.ID(row.OrderID), Status: order.OrderStatusPending}
	if err := r.orders.MarkPaid(ctx, token, o); err != nil {
		attempts := row.Attempts + 1
		next := r.now().UTC().Add(r.backoff(attempts))
		if rerr := r.ledger.RescheduleFinalization(ctx, row.ID, attempts, err.Error(), next); rerr != nil {
			return false, rerr
		}
		logger.WithError(err).WithField("next_attempt_at", next).Warn("finalization retry failed")

		if attempts == r.config.RetryMaxAttempts {
			if aerr := r.alerts.Notify(ctx, alert.Alert{
				Type:      alert.AlertTypeFinalizationGaveUp,
				Subject:   fmt.Sprintf("Order %s still not finalized after %d attempts", row.OrderID, attempts),
				OrderID:   row.OrderID,
				SessionID: row.SessionID,
				Detail:    err.Error(),
				RaisedAt:  r.now().UTC(),
			}); aerr != nil {
				logger.WithError(aerr).Error("failed to send finalization alert")
			}
		}
		return false, nil
	}

	if err := r.ledger.MarkFinalized(ctx, row.ID, r.now().UTC()); err != nil {
		return false, err
	}
	if row.AttemptID != "" {
		if err := r.ledger.ResolveAttempt(ctx, row.AttemptID, StateSucceeded); err != nil {
			logger.WithError(err).Warn("failed to resolve checkout attempt")
		}
	}
	if err := r.orders.Sync(ctx, token, o.ID); err != nil {
		logger.WithError(err).Warn("order sync failed")
	}

	logger.Info("order finalized")
	return true, nil
}

// backoff doubles RetryBackoff per failed attempt, capped at an hour
func (r *FinalizationRetrier) backoff(attempts int) time.Duration {
	d := r.config.RetryBackoff
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempts && d < maxRetryBackoff; i++ {
		d *= 2
	}
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	return d
}
