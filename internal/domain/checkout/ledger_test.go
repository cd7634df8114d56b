package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockLedger(t *testing.T) (*GormLedger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormLedger(gdb), mock
}

func TestListAttempts_ScansRows(t *testing.T) {
	ledger, mock := newMockLedger(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "session_id", "customer_id", "order_id", "amount_minor", "currency", "state", "failure_kind", "failure_reason", "created_at", "updated_at"}).
		AddRow("a1", "s1", "42", "ord-1", 3998, "usd", "SUCCEEDED", "", "", now, now).
		AddRow("a0", "s1", "42", "ord-0", 3998, "usd", "FAILED", "payment", "declined", now, now)
	mock.ExpectQuery(`SELECT \* FROM "checkout_attempts" WHERE session_id = \$1 ORDER BY created_at DESC`).WillReturnRows(rows)

	attempts, err := ledger.ListAttempts(context.Background(), "s1", 5)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, StateSucceeded, attempts[0].State)
	assert.Equal(t, int64(3998), attempts[0].AmountMinor)
	assert.Equal(t, KindPayment, attempts[1].FailureKind)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAttempts_WrapsError(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectQuery(`FROM "checkout_attempts"`).WillReturnError(errors.New("connection refused"))

	_, err := ledger.ListAttempts(context.Background(), "s1", 5)
	assert.ErrorContains(t, err, "failed to list checkout attempts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAttempt_UpdatesByID(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectExec(`UPDATE "checkout_attempts" SET .* WHERE id = `).WillReturnResult(sqlmock.NewResult(0, 1))

	err := ledger.UpdateAttempt(context.Background(), &CheckoutAttempt{ID: "a1", State: StateFinalizing, OrderID: "ord-1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueFinalization_UpsertsOnOrderID(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectQuery(`INSERT INTO "pending_finalizations" .* ON CONFLICT \("order_id"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	pending := &PendingFinalization{OrderID: "ord-1", AttemptID: "a1", NextAttemptAt: time.Now()}
	require.NoError(t, ledger.QueueFinalization(context.Background(), pending))
	assert.Equal(t, uint(7), pending.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDueFinalizations_SelectsUnresolved(t *testing.T) {
	ledger, mock := newMockLedger(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "order_id", "attempts", "next_attempt_at"}).
		AddRow(1, "ord-1", 3, now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT \* FROM "pending_finalizations" WHERE resolved_at IS NULL AND next_attempt_at <= \$1 ORDER BY next_attempt_at ASC`).
		WillReturnRows(rows)

	due, err := ledger.DueFinalizations(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "ord-1", due[0].OrderID)
	assert.Equal(t, 3, due[0].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFinalized_SetsResolvedAt(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectExec(`UPDATE "pending_finalizations" SET "resolved_at"=\$1`).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.MarkFinalized(context.Background(), 1, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleFinalization_WrapsError(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectExec(`UPDATE "pending_finalizations"`).WillReturnError(errors.New("deadlock"))

	err := ledger.RescheduleFinalization(context.Background(), 1, 4, "timeout", time.Now())
	assert.ErrorContains(t, err, "failed to reschedule finalization 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
