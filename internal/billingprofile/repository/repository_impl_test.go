package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/billingprofile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestIncrementIsSingleStatement(t *testing.T) {
	db, mock := newMockDB(t)
	id := snowflake.ID(42)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE billing_profiles")).
		WithArgs(sqlmock.AnyArg(), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "invoice_next_number", "invoice_prefix", "invoice_padding", "series_format"}).
			AddRow(int64(42), "platform", int64(8), "MRC", 5, "{PREFIX}/{FY}/{NNNNN}"))

	row, err := Provide().Increment(context.Background(), db, id, time.Now())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.EqualValues(t, 8, row.InvoiceNextNumber)
	assert.Equal(t, "MRC", row.InvoicePrefix)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementNoRow(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE billing_profiles")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "invoice_next_number", "invoice_prefix", "invoice_padding", "series_format"}))

	row, err := Provide().Increment(context.Background(), db, snowflake.ID(9), time.Now())
	require.NoError(t, err)
	assert.Nil(t, row)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSeriesReportsStaleCounter(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE billing_profiles")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := Provide().UpdateSeries(context.Background(), db, &domain.BillingProfile{
		ID:                snowflake.ID(42),
		InvoicePrefix:     "NEW",
		InvoicePadding:    5,
		SeriesFormat:      "{PREFIX}/{FY}/{NNNNN}",
		InvoiceNextNumber: 5,
		UpdatedAt:         time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
