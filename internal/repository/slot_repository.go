package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
)

// SlotRepo provides data access to the service_slots table. The only
// mutation primitive for slot status is a conditional update keyed on
// the previously observed status, so concurrent writers detect lost
// races without table-level locks. All timestamps are stored in UTC.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span slot and booking writes.
func (r *SlotRepo) DB() *sql.DB { return r.db }

const slotColumns = `id, service_id, booking_id, start_time, end_time, status, is_recurring, created_at, updated_at`

func scanSlot(row interface{ Scan(...interface{}) error }) (model.ServiceSlot, error) {
	var s model.ServiceSlot
	var bookingID sql.NullInt64
	err := row.Scan(&s.ID, &s.ServiceID, &bookingID, &s.StartTime, &s.EndTime,
		&s.Status, &s.IsRecurring, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.ServiceSlot{}, err
	}
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		s.BookingID = &id
	}
	return s, nil
}

// CreateBulk inserts multiple slots in a single statement. Only
// service_id, start_time, end_time, status and is_recurring are
// written; timestamps default in the DB. The ID fields of the passed
// records are not populated. Passing an empty slice is a no-op.
func (r *SlotRepo) CreateBulk(ctx context.Context, slots []model.ServiceSlot) error {
	if len(slots) == 0 {
		return nil
	}
	query := `INSERT INTO service_slots (service_id, start_time, end_time, status, is_recurring) VALUES `
	args := make([]interface{}, 0, len(slots)*5)
	for i, s := range slots {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		status := s.Status
		if status == "" {
			status = model.SlotAvailable
		}
		args = append(args,
			s.ServiceID,
			s.StartTime.UTC().Format("2006-01-02 15:04:05"),
			s.EndTime.UTC().Format("2006-01-02 15:04:05"),
			status,
			s.IsRecurring,
		)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// GetByID returns a single slot. ErrNotFound is returned when no slot
// with the given id exists.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*model.ServiceSlot, error) {
	const q = `SELECT ` + slotColumns + ` FROM service_slots WHERE id = ?`
	s, err := scanSlot(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindAvailable returns AVAILABLE slots of a service whose window
// starts inside [from, to), ordered by start time. BLOCKED and BOOKED
// slots never appear here, which keeps vendor manual holds and live
// bookings out of candidate selection.
func (r *SlotRepo) FindAvailable(ctx context.Context, serviceID uint64, from, to time.Time) ([]model.ServiceSlot, error) {
	const q = `SELECT ` + slotColumns + `
	           FROM service_slots
	           WHERE service_id = ? AND status = ? AND start_time >= ? AND start_time < ?
	           ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, serviceID, model.SlotAvailable,
		from.UTC().Format("2006-01-02 15:04:05"), to.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]model.ServiceSlot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// ListByService returns every slot of a service ordered by start
// time, regardless of status. Vendors use this to review their
// published calendar.
func (r *SlotRepo) ListByService(ctx context.Context, serviceID uint64) ([]model.ServiceSlot, error) {
	const q = `SELECT ` + slotColumns + ` FROM service_slots WHERE service_id = ? ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]model.ServiceSlot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// GetForBookingTx re-reads the given slots inside an open transaction.
// The engine calls this before flipping statuses so that validation
// and the conditional updates observe the same snapshot. Slots are
// returned in no particular order; missing ids simply yield fewer
// rows than requested.
func (r *SlotRepo) GetForBookingTx(ctx context.Context, tx *sql.Tx, slotIDs []uint64) ([]model.ServiceSlot, error) {
	if len(slotIDs) == 0 {
		return []model.ServiceSlot{}, nil
	}
	placeholders := make([]string, 0, len(slotIDs))
	args := make([]interface{}, 0, len(slotIDs))
	for _, id := range slotIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT ` + slotColumns + ` FROM service_slots WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]model.ServiceSlot, 0, len(slotIDs))
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// CompareAndSwapStatusTx transitions one slot from expectedStatus to
// newStatus within the provided transaction, setting or clearing the
// booking back-reference in the same statement. When the conditional
// update matches no row the slot either vanished (ErrNotFound) or its
// status changed under the caller (ErrSlotConflict); the follow-up
// existence probe distinguishes the two.
func (r *SlotRepo) CompareAndSwapStatusTx(ctx context.Context, tx *sql.Tx, slotID uint64, expectedStatus, newStatus string, bookingID *uint64) error {
	const q = `UPDATE service_slots
	           SET status = ?, booking_id = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	var ref interface{}
	if bookingID != nil {
		ref = *bookingID
	}
	res, err := tx.ExecContext(ctx, q, newStatus, ref, slotID, expectedStatus)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM service_slots WHERE id = ?`, slotID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrSlotConflict
}

// ReleaseByBookingTx reverts every BOOKED slot held by the given
// booking to AVAILABLE and clears the back-reference, returning the
// ids that were released. Called from the cancellation path; running
// it twice for the same booking is harmless because the second pass
// matches nothing.
func (r *SlotRepo) ReleaseByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM service_slots WHERE booking_id = ? AND status = ?`,
		bookingID, model.SlotBooked)
	if err != nil {
		return nil, err
	}
	var slotIDs []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		slotIDs = append(slotIDs, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(slotIDs) == 0 {
		return []uint64{}, nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE service_slots SET status = ?, booking_id = NULL, updated_at = UTC_TIMESTAMP() WHERE booking_id = ? AND status = ?`,
		model.SlotAvailable, bookingID, model.SlotBooked)
	if err != nil {
		return nil, err
	}
	return slotIDs, nil
}

// Block places a vendor manual hold on an AVAILABLE slot. The same
// compare-and-swap discipline applies: a slot that is BOOKED or
// already BLOCKED yields ErrSlotConflict.
func (r *SlotRepo) Block(ctx context.Context, slotID uint64) error {
	return r.swapStatus(ctx, slotID, model.SlotAvailable, model.SlotBlocked)
}

// Unblock lifts a vendor manual hold, returning the slot to
// AVAILABLE. Only BLOCKED slots qualify.
func (r *SlotRepo) Unblock(ctx context.Context, slotID uint64) error {
	return r.swapStatus(ctx, slotID, model.SlotBlocked, model.SlotAvailable)
}

func (r *SlotRepo) swapStatus(ctx context.Context, slotID uint64, expected, next string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE service_slots SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ? AND booking_id IS NULL`,
		next, slotID, expected)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists uint64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM service_slots WHERE id = ?`, slotID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrSlotConflict
}

// ServiceOwnerID returns the vendor owning the service a slot belongs
// to, for ownership checks on the vendor API. ErrNotFound when the
// slot does not exist.
func (r *SlotRepo) ServiceOwnerID(ctx context.Context, slotID uint64) (uint64, error) {
	const q = `SELECT s.vendor_id
	           FROM service_slots sl
	           JOIN services s ON s.id = sl.service_id
	           WHERE sl.id = ?`
	var vendorID uint64
	err := r.db.QueryRowContext(ctx, q, slotID).Scan(&vendorID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return vendorID, nil
}
