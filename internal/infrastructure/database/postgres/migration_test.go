package postgres

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestCreateIndexes_ContinuesPastFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectExec("idx_checkout_attempts_session_created").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("idx_checkout_attempts_state_updated").WillReturnError(errors.New("permission denied"))
	mock.ExpectExec("idx_pending_finalizations_due").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewMigration(gdb).CreateIndexes())
	assert.NoError(t, mock.ExpectationsWereMet())
}
