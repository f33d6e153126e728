package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
)

// BookingRepo provides data access to the bookings, booking_details
// and payments tables. Status changes go through a conditional update
// keyed on the expected current status, mirroring the slot
// compare-and-swap discipline, so racing lifecycle calls cannot both
// win. All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// WithTransaction runs fn inside a transaction. The transaction is
// committed when fn returns nil and rolled back on every other exit
// path, including panics unwinding through here and context
// cancellation aborting a statement mid-flight.
func (r *BookingRepo) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

const bookingColumns = `id, customer_id, service_id, status, scheduled_date, created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.CustomerID, &b.ServiceID, &b.Status,
		&b.ScheduledDate, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID and timestamps on the
// provided record. Status must be a valid enumeration value; the
// engine always creates bookings as PENDING.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (customer_id, service_id, status, scheduled_date) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.CustomerID, b.ServiceID, b.Status,
		b.ScheduledDate.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	const sel = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	got, err := scanBooking(tx.QueryRowContext(ctx, sel, b.ID))
	if err != nil {
		return err
	}
	*b = got
	return nil
}

// GetByID returns a booking by id. ErrNotFound when no such booking
// exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByIDTx is GetByID inside an open transaction, used by the engine
// so state checks and the subsequent conditional update observe the
// same row.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateStatusTx transitions a booking from expectedStatus to
// newStatus within the provided transaction. A conditional update
// that matches no row means the booking either does not exist
// (ErrNotFound) or sits in a different state (ErrInvalidTransition);
// the follow-up probe distinguishes the two.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, expectedStatus, newStatus string) error {
	const q = `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, newStatus, id, expectedStatus)
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
	err = tx.QueryRowContext(ctx, `SELECT id FROM bookings WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidTransition
}

// CreateDetailsTx writes the immutable financial snapshot for a
// booking. The booking_details table carries a unique key on
// booking_id, so a second write for the same booking fails at the
// database rather than silently overwriting the audit record.
func (r *BookingRepo) CreateDetailsTx(ctx context.Context, tx *sql.Tx, d *model.BookingDetails) error {
	const q = `INSERT INTO booking_details (booking_id, service_snapshot, unit_price_cents, quantity, tax_total_cents, grand_total_cents)
	           VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, d.BookingID, []byte(d.ServiceSnapshot),
		d.UnitPriceCents, d.Quantity, d.TaxTotalCents, d.GrandTotalCents)
	return err
}

// CreatePaymentTx records an externally obtained processor result for
// a booking and populates the generated ID on the provided record.
func (r *BookingRepo) CreatePaymentTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, amount_cents, processor_ref, status) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.BookingID, p.AmountCents, p.ProcessorRef, p.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetDetails returns the financial snapshot of a booking, or
// ErrNotFound when confirmation has not happened yet.
func (r *BookingRepo) GetDetails(ctx context.Context, bookingID uint64) (*model.BookingDetails, error) {
	const q = `SELECT booking_id, service_snapshot, unit_price_cents, quantity, tax_total_cents, grand_total_cents, created_at
	           FROM booking_details WHERE booking_id = ?`
	var d model.BookingDetails
	var snapshot []byte
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(&d.BookingID, &snapshot,
		&d.UnitPriceCents, &d.Quantity, &d.TaxTotalCents, &d.GrandTotalCents, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.ServiceSnapshot = snapshot
	return &d, nil
}

// GetPayment returns the payment of a booking, or ErrNotFound when no
// processor result has been recorded.
func (r *BookingRepo) GetPayment(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	const q = `SELECT id, booking_id, amount_cents, processor_ref, status, created_at FROM payments WHERE booking_id = ?`
	var p model.Payment
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(&p.ID, &p.BookingID,
		&p.AmountCents, &p.ProcessorRef, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentTx is GetPayment inside an open transaction. The
// cancellation path uses it to decide whether a refund intent must be
// emitted after commit.
func (r *BookingRepo) GetPaymentTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error) {
	const q = `SELECT id, booking_id, amount_cents, processor_ref, status, created_at FROM payments WHERE booking_id = ?`
	var p model.Payment
	err := tx.QueryRowContext(ctx, q, bookingID).Scan(&p.ID, &p.BookingID,
		&p.AmountCents, &p.ProcessorRef, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindExpiredPending returns ids of PENDING bookings created at or
// before the cutoff that still have no payment attached. The expiry
// sweeper cancels these to stop abandoned checkouts from starving
// slot availability. Results are capped by limit to keep each sweep
// bounded.
func (r *BookingRepo) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	const q = `SELECT b.id
	           FROM bookings b
	           LEFT JOIN payments p ON p.booking_id = b.id
	           WHERE b.status = ? AND b.created_at <= ? AND p.id IS NULL
	           ORDER BY b.created_at
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, model.BookingPending,
		cutoff.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// BookingSummary is the per-booking view returned to customers. It
// flattens the booking with its slot windows and, when present, the
// confirmed totals.
type BookingSummary struct {
	ID              uint64     `json:"id"`
	ServiceID       uint64     `json:"service_id"`
	Status          string     `json:"status"`
	ScheduledDate   string     `json:"scheduled_date"`
	GrandTotalCents *int64     `json:"grand_total_cents,omitempty"`
	Slots           []SlotSpan `json:"slots"`
}

// SlotSpan is one reserved window inside a BookingSummary.
type SlotSpan struct {
	SlotID    uint64 `json:"slot_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ListByCustomer returns all bookings of a customer, newest first,
// each with its reserved slot windows and confirmed grand total when
// details exist. Slots released by cancellation no longer carry the
// back-reference and therefore drop out of the summary.
func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]BookingSummary, error) {
	const q = `SELECT b.id, b.service_id, b.status, b.scheduled_date, d.grand_total_cents
	           FROM bookings b
	           LEFT JOIN booking_details d ON d.booking_id = b.id
	           WHERE b.customer_id = ?
	           ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	summaries := make([]BookingSummary, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var s BookingSummary
		var scheduled time.Time
		var grand sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ServiceID, &s.Status, &scheduled, &grand); err != nil {
			return nil, err
		}
		s.ScheduledDate = scheduled.UTC().Format(time.RFC3339)
		if grand.Valid {
			g := grand.Int64
			s.GrandTotalCents = &g
		}
		s.Slots = []SlotSpan{}
		index[s.ID] = len(summaries)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return summaries, nil
	}
	const slotQ = `SELECT sl.booking_id, sl.id, sl.start_time, sl.end_time
	               FROM service_slots sl
	               JOIN bookings b ON b.id = sl.booking_id
	               WHERE b.customer_id = ?
	               ORDER BY sl.start_time`
	srows, err := r.db.QueryContext(ctx, slotQ, customerID)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bookingID, slotID uint64
		var start, end time.Time
		if err := srows.Scan(&bookingID, &slotID, &start, &end); err != nil {
			return nil, err
		}
		idx, ok := index[bookingID]
		if !ok {
			continue
		}
		summaries[idx].Slots = append(summaries[idx].Slots, SlotSpan{
			SlotID:    slotID,
			StartTime: start.UTC().Format(time.RFC3339),
			EndTime:   end.UTC().Format(time.RFC3339),
		})
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}
