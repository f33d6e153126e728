package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
)

func slotRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "service_id", "booking_id", "start_time", "end_time",
		"status", "is_recurring", "created_at", "updated_at",
	})
}

func TestSlotRepoCompareAndSwapStatusTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSlotRepo(db)
	ctx := context.Background()
	bookingID := uint64(7)

	t.Run("swap succeeds", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE service_slots SET status").
			WithArgs(model.SlotBooked, bookingID, uint64(10), model.SlotAvailable).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		err = repo.CompareAndSwapStatusTx(ctx, tx, 10, model.SlotAvailable, model.SlotBooked, &bookingID)
		assert.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status changed under the caller", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE service_slots SET status").
			WithArgs(model.SlotBooked, bookingID, uint64(10), model.SlotAvailable).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id FROM service_slots WHERE id").
			WithArgs(uint64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		err = repo.CompareAndSwapStatusTx(ctx, tx, 10, model.SlotAvailable, model.SlotBooked, &bookingID)
		assert.ErrorIs(t, err, ErrSlotConflict)
		require.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("slot does not exist", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE service_slots SET status").
			WithArgs(model.SlotBooked, bookingID, uint64(99), model.SlotAvailable).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT id FROM service_slots WHERE id").
			WithArgs(uint64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		err = repo.CompareAndSwapStatusTx(ctx, tx, 99, model.SlotAvailable, model.SlotBooked, &bookingID)
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSlotRepoFindAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSlotRepo(db)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	start := from.Add(9 * time.Hour)
	end := start.Add(time.Hour)

	mock.ExpectQuery("FROM service_slots").
		WithArgs(uint64(1), model.SlotAvailable, "2025-06-01 00:00:00", "2025-06-08 00:00:00").
		WillReturnRows(slotRows(t).
			AddRow(10, 1, nil, start, end, model.SlotAvailable, false, from, from))

	slots, err := repo.FindAvailable(context.Background(), 1, from, to)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, uint64(10), slots[0].ID)
	assert.Nil(t, slots[0].BookingID)
	assert.Equal(t, model.SlotAvailable, slots[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepoCreateBulk(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSlotRepo(db)

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	slots := []model.ServiceSlot{
		{ServiceID: 1, StartTime: start, EndTime: start.Add(time.Hour)},
		{ServiceID: 1, StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour), IsRecurring: true},
	}

	mock.ExpectExec("INSERT INTO service_slots").
		WithArgs(
			uint64(1), "2025-06-01 09:00:00", "2025-06-01 10:00:00", model.SlotAvailable, false,
			uint64(1), "2025-06-01 10:00:00", "2025-06-01 11:00:00", model.SlotAvailable, true,
		).
		WillReturnResult(sqlmock.NewResult(2, 2))

	require.NoError(t, repo.CreateBulk(context.Background(), slots))
	assert.NoError(t, mock.ExpectationsWereMet())

	// empty input never touches the database
	require.NoError(t, repo.CreateBulk(context.Background(), nil))
}

func TestSlotRepoReleaseByBookingTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSlotRepo(db)
	ctx := context.Background()

	t.Run("releases held slots", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM service_slots WHERE booking_id").
			WithArgs(uint64(7), model.SlotBooked).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10).AddRow(11))
		mock.ExpectExec("UPDATE service_slots SET status").
			WithArgs(model.SlotAvailable, uint64(7), model.SlotBooked).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		ids, err := repo.ReleaseByBookingTx(ctx, tx, 7)
		require.NoError(t, err)
		assert.Equal(t, []uint64{10, 11}, ids)
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing held is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM service_slots WHERE booking_id").
			WithArgs(uint64(8), model.SlotBooked).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		ids, err := repo.ReleaseByBookingTx(ctx, tx, 8)
		require.NoError(t, err)
		assert.Empty(t, ids)
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSlotRepoBlockRequiresFreeSlot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSlotRepo(db)

	// a booked slot cannot be blocked
	mock.ExpectExec("UPDATE service_slots SET status").
		WithArgs(model.SlotBlocked, uint64(10), model.SlotAvailable).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM service_slots WHERE id").
		WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

	err = repo.Block(context.Background(), 10)
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepoServiceOwnerID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSlotRepo(db)

	mock.ExpectQuery("JOIN services").
		WithArgs(uint64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"vendor_id"}).AddRow(5))

	owner, err := repo.ServiceOwnerID(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), owner)

	mock.ExpectQuery("JOIN services").
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"vendor_id"}))

	_, err = repo.ServiceOwnerID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
