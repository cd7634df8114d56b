// internal/domain/checkout/ledger.go
package checkout

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckoutAttempt records one submit of the checkout sequence
type CheckoutAttempt struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID     string    `gorm:"size:64;not null;index" json:"session_id"`
	CustomerID    string    `gorm:"size:64;index" json:"customer_id"`
	OrderID       string    `gorm:"size:64;index" json:"order_id"`
	AmountMinor   int64     `gorm:"not null;default:0" json:"amount_minor"`
	Currency      string    `gorm:"size:3;not null" json:"currency"`
	State         StateName `gorm:"size:32;not null;index" json:"state"`
	FailureKind   ErrorKind `gorm:"size:32" json:"failure_kind,omitempty"`
	FailureReason string    `gorm:"type:text" json:"failure_reason,omitempty"`
	IntentID      string    `gorm:"size:128" json:"intent_id,omitempty"`
	ChargeID      string    `gorm:"size:128" json:"charge_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (CheckoutAttempt) TableName() string {
	return "checkout_attempts"
}

// PendingFinalization is a paid order whose PAID status still has to be recorded
type PendingFinalization struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OrderID       string     `gorm:"size:64;not null;uniqueIndex" json:"order_id"`
	AttemptID     string     `gorm:"type:uuid;index" json:"attempt_id"`
	SessionID     string     `gorm:"size:64" json:"session_id"`
	AuthToken     string     `gorm:"type:text" json:"-"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     string     `gorm:"type:text" json:"last_error"`
	NextAttemptAt time.Time  `gorm:"not null;index" json:"next_attempt_at"`
	ResolvedAt    *time.Time `gorm:"index" json:"resolved_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName overrides the table name
func (PendingFinalization) TableName() string {
	return "pending_finalizations"
}

// Ledger durably records checkout attempts and the finalization retry queue
type Ledger interface {
	RecordAttempt(ctx context.Context, attempt *CheckoutAttempt) error
	UpdateAttempt(ctx context.Context, attempt *CheckoutAttempt) error
	ResolveAttempt(ctx context.Context, attemptID string, state StateName) error
	ListAttempts(ctx context.Context, sessionID string, limit int) ([]CheckoutAttempt, error)
	QueueFinalization(ctx context.Context, pending *PendingFinalization) error
	DueFinalizations(ctx context.Context, now time.Time, limit int) ([]PendingFinalization, error)
	MarkFinalized(ctx context.Context, id uint, at time.Time) error
	RescheduleFinalization(ctx context.Context, id uint, attempts int, lastErr string, next time.Time) error
}

// GormLedger is the Postgres-backed ledger
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger creates a new ledger over db
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// RecordAttempt inserts a new attempt
func (l *GormLedger) RecordAttempt(ctx context.Context, attempt *CheckoutAttempt) error {
	if err := l.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to record checkout attempt: %w", err)
	}
	return nil
}

// UpdateAttempt stores the attempt's current state and outcome
func (l *GormLedger) UpdateAttempt(ctx context.Context, attempt *CheckoutAttempt) error {
	err := l.db.WithContext(ctx).Model(&CheckoutAttempt{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]interface{}{
			"order_id":       attempt.OrderID,
			"customer_id":    attempt.CustomerID,
			"amount_minor":   attempt.AmountMinor,
			"state":          attempt.State,
			"failure_kind":   attempt.FailureKind,
			"failure_reason": attempt.FailureReason,
			"intent_id":      attempt.IntentID,
			"charge_id":      attempt.ChargeID,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update checkout attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// ResolveAttempt moves an attempt to a final state and clears its failure
func (l *GormLedger) ResolveAttempt(ctx context.Context, attemptID string, state StateName) error {
	err := l.db.WithContext(ctx).Model(&CheckoutAttempt{}).
		Where("id = ?", attemptID).
		Updates(map[string]interface{}{
			"state":          state,
			"failure_kind":   "",
			"failure_reason": "",
		}).Error
	if err != nil {
		return fmt.Errorf("failed to resolve checkout attempt %s: %w", attemptID, err)
	}
	return nil
}

// ListAttempts returns the most recent attempts of a session
func (l *GormLedger) ListAttempts(ctx context.Context, sessionID string, limit int) ([]CheckoutAttempt, error) {
	var attempts []CheckoutAttempt
	err := l.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout attempts: %w", err)
	}
	return attempts, nil
}

// QueueFinalization inserts a pending finalization, or re-arms the existing row for the same order
func (l *GormLedger) QueueFinalization(ctx context.Context, pending *PendingFinalization) error {
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"auth_token", "last_error", "next_attempt_at", "resolved_at", "updated_at"}),
	}).Create(pending).Error
	if err != nil {
		return fmt.Errorf("failed to queue finalization for order %s: %w", pending.OrderID, err)
	}
	return nil
}

// DueFinalizations returns unresolved rows whose next attempt is due, oldest first
func (l *GormLedger) DueFinalizations(ctx context.Context, now time.Time, limit int) ([]PendingFinalization, error) {
	var rows []PendingFinalization
	err := l.db.WithContext(ctx).
		Where("resolved_at IS NULL AND next_attempt_at <= ?", now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load due finalizations: %w", err)
	}
	return rows, nil
}

// MarkFinalized resolves a pending finalization
func (l *GormLedger) MarkFinalized(ctx context.Context, id uint, at time.Time) error {
	err := l.db.WithContext(ctx).Model(&PendingFinalization{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"resolved_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to mark finalization %d resolved: %w", id, err)
	}
	return nil
}

// RescheduleFinalization records a failed retry and when to try next
func (l *GormLedger) RescheduleFinalization(ctx context.Context, id uint, attempts int, lastErr string, next time.Time) error {
	err := l.db.WithContext(ctx).Model(&PendingFinalization{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"last_error":      lastErr,
			"next_attempt_at": next,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reschedule finalization %d: %w", id, err)
	}
	return nil
}
