package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
)

func bookingRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "customer_id", "service_id", "status", "scheduled_date", "created_at", "updated_at",
	})
}

func TestBookingRepoWithTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectCommit()
		err := repo.WithTransaction(ctx, func(tx *sql.Tx) error { return nil })
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()
		boom := errors.New("boom")
		err := repo.WithTransaction(ctx, func(tx *sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepoCreateTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	when := time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(uint64(42), uint64(1), model.BookingPending, "2025-07-01 14:00:00").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("FROM bookings WHERE id").
		WithArgs(uint64(7)).
		WillReturnRows(bookingRows(t).AddRow(7, 42, 1, model.BookingPending, when, now, now))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	b := &model.Booking{CustomerID: 42, ServiceID: 1, Status: model.BookingPending, ScheduledDate: when}
	require.NoError(t, repo.CreateTx(context.Background(), tx, b))
	assert.Equal(t, uint64(7), b.ID)
	assert.Equal(t, now, b.CreatedAt)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoUpdateStatusTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)
	ctx := context.Background()

	t.Run("transition succeeds", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET status").
			WithArgs(model.BookingActive, uint64(7), model.BookingPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		assert.NoError(t, repo.UpdateStatusTx(ctx, tx, 7, model.BookingPending, model.BookingActive))
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong current status", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET status").
			WithArgs(model.BookingActive, uint64(7), model.BookingPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id FROM bookings WHERE id").
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		err = repo.UpdateStatusTx(ctx, tx, 7, model.BookingPending, model.BookingActive)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		require.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("booking missing", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET status").
			WithArgs(model.BookingActive, uint64(99), model.BookingPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id FROM bookings WHERE id").
			WithArgs(uint64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		err = repo.UpdateStatusTx(ctx, tx, 99, model.BookingPending, model.BookingActive)
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	mock.ExpectQuery("FROM bookings WHERE id").
		WithArgs(uint64(99)).
		WillReturnRows(bookingRows(t))

	_, err = repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoFindExpiredPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	cutoff := time.Date(2025, 6, 15, 11, 30, 0, 0, time.UTC)
	mock.ExpectQuery("LEFT JOIN payments").
		WithArgs(model.BookingPending, "2025-06-15 11:30:00", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(5))

	ids, err := repo.FindExpiredPending(context.Background(), cutoff, 100)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 5}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoGetPaymentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	mock.ExpectQuery("FROM payments WHERE booking_id").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount_cents", "processor_ref", "status", "created_at"}))

	_, err = repo.GetPayment(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoListByCustomer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	when := time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC)
	start := when.Add(-2 * time.Hour)

	mock.ExpectQuery("LEFT JOIN booking_details").
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "service_id", "status", "scheduled_date", "grand_total_cents"}).
			AddRow(7, 1, model.BookingActive, when, 5450).
			AddRow(8, 1, model.BookingPending, when, nil))
	mock.ExpectQuery("JOIN bookings").
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "id", "start_time", "end_time"}).
			AddRow(7, 10, start, start.Add(time.Hour)).
			AddRow(8, 11, start.Add(time.Hour), start.Add(2*time.Hour)))

	got, err := repo.ListByCustomer(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].GrandTotalCents)
	assert.Equal(t, int64(5450), *got[0].GrandTotalCents)
	assert.Nil(t, got[1].GrandTotalCents)
	require.Len(t, got[0].Slots, 1)
	assert.Equal(t, uint64(10), got[0].Slots[0].SlotID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
