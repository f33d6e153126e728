// Package engine implements the slot reservation and booking lifecycle
// core. It converts AVAILABLE slots into BOOKED ones tied to exactly one
// booking, drives the booking state machine to completion or
// cancellation, and coordinates the dependent financial records, all
// through the stores' transaction and compare-and-swap primitives. The
// engine holds no in-process locks: many request handlers may call it
// concurrently, and correctness comes entirely from conditional updates
// executed inside a single transaction scope per operation.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
	"github.com/iliyamo/marketplace-slot-booking/internal/queue"
	"github.com/iliyamo/marketplace-slot-booking/internal/repository"
)

// ErrNoSlots is returned by CreateBooking when the request names no
// slots after deduplication.
var ErrNoSlots = errors.New("no slots requested")

// SlotStore is the slot access the engine needs. Implementations must
// make CompareAndSwapStatusTx a conditional update so that of two
// racing writers exactly one succeeds and the other observes
// repository.ErrSlotConflict.
type SlotStore interface {
	GetForBookingTx(ctx context.Context, tx *sql.Tx, slotIDs []uint64) ([]model.ServiceSlot, error)
	CompareAndSwapStatusTx(ctx context.Context, tx *sql.Tx, slotID uint64, expectedStatus, newStatus string, bookingID *uint64) error
	ReleaseByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]uint64, error)
}

// BookingStore is the booking access the engine needs. WithTransaction
// must guarantee that all writes inside fn commit or roll back
// together and that the transaction is released on every exit path.
type BookingStore interface {
	WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, expectedStatus, newStatus string) error
	CreateDetailsTx(ctx context.Context, tx *sql.Tx, d *model.BookingDetails) error
	CreatePaymentTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	GetPaymentTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
}

// ServiceStore supplies the service row captured into the booking
// details snapshot at confirmation time.
type ServiceStore interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Service, error)
}

// RefundSink consumes refund-intent events emitted when a paid
// booking is cancelled. Publishing is fire-and-forget: the engine
// never blocks a state transition on refund delivery.
type RefundSink interface {
	PublishRefundIntent(ctx context.Context, ev queue.RefundIntentEvent) error
}

// ConfirmationSink consumes booking-confirmed events emitted after a
// successful confirmation commit.
type ConfirmationSink interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// BookingDetailsInput carries the financial figures supplied by the
// caller at confirmation. All amounts are integer cents.
type BookingDetailsInput struct {
	UnitPriceCents  int64
	Quantity        int64
	TaxTotalCents   int64
	GrandTotalCents int64
}

// PaymentInput carries an already-obtained payment processor result.
// The engine records it verbatim; it never calls the processor.
type PaymentInput struct {
	AmountCents  int64
	ProcessorRef string
	Status       string
}

// ReservationEngine orchestrates slot selection, booking creation,
// state transitions and cancellation unwinding. All store interaction
// happens through the injected interfaces, so the engine itself is
// trivially shareable across goroutines.
type ReservationEngine struct {
	slots    SlotStore
	bookings BookingStore
	services ServiceStore
	refunds  RefundSink
	confirms ConfirmationSink
	holdTTL  time.Duration
	sweepCap int
	now      func() time.Time
}

// NewReservationEngine constructs an engine. The stores must be
// non-nil; the sinks may be nil, in which case the corresponding
// events are dropped. holdTTL bounds how long an unpaid PENDING
// booking may keep its slots before the sweeper reclaims them.
func NewReservationEngine(slots SlotStore, bookings BookingStore, services ServiceStore, refunds RefundSink, confirms ConfirmationSink, holdTTL time.Duration) *ReservationEngine {
	if slots == nil || bookings == nil || services == nil {
		panic("nil store passed to NewReservationEngine")
	}
	if holdTTL <= 0 {
		holdTTL = 30 * time.Minute
	}
	return &ReservationEngine{
		slots:    slots,
		bookings: bookings,
		services: services,
		refunds:  refunds,
		confirms: confirms,
		holdTTL:  holdTTL,
		sweepCap: 100,
		now:      time.Now,
	}
}

// CreateBooking reserves the given slots for a customer in a single
// transaction. The service must exist and be active; a deactivated
// service rejects new bookings even when the caller addresses its
// slots by id. Each target slot is re-read with a conditional check:
// if any slot changed status since the caller observed it the whole
// operation fails with repository.ErrSlotConflict and no partial
// effect remains. On success the booking is created in PENDING and
// every slot is flipped to BOOKED with the booking back-reference.
// Payment and pricing happen in a later step.
func (e *ReservationEngine) CreateBooking(ctx context.Context, customerID, serviceID uint64, slotIDs []uint64, scheduledDate time.Time) (*model.Booking, error) {
	unique := dedupe(slotIDs)
	if len(unique) == 0 {
		return nil, ErrNoSlots
	}
	booking := &model.Booking{
		CustomerID:    customerID,
		ServiceID:     serviceID,
		Status:        model.BookingPending,
		ScheduledDate: scheduledDate.UTC(),
	}
	err := e.bookings.WithTransaction(ctx, func(tx *sql.Tx) error {
		svc, err := e.services.GetByIDTx(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		if !svc.IsActive {
			// soft-deactivated services are invisible to customers
			return repository.ErrNotFound
		}
		slots, err := e.slots.GetForBookingTx(ctx, tx, unique)
		if err != nil {
			return err
		}
		if len(slots) != len(unique) {
			return repository.ErrNotFound
		}
		for _, s := range slots {
			if s.ServiceID != serviceID {
				return repository.ErrNotFound
			}
			if s.Status != model.SlotAvailable {
				return repository.ErrSlotConflict
			}
		}
		if err := e.bookings.CreateTx(ctx, tx, booking); err != nil {
			return err
		}
		for _, s := range slots {
			if err := e.slots.CompareAndSwapStatusTx(ctx, tx, s.ID, model.SlotAvailable, model.SlotBooked, &booking.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ConfirmBooking records the financial snapshot and payment result
// for a PENDING booking and transitions it to ACTIVE, atomically.
// The grand total must equal unitPrice*quantity + taxTotal exactly
// (integer cents), otherwise repository.ErrInvalidAmount is returned
// before any write. Confirming a terminal booking yields
// repository.ErrTerminalState; any other non-PENDING state yields
// repository.ErrInvalidTransition.
func (e *ReservationEngine) ConfirmBooking(ctx context.Context, bookingID uint64, details BookingDetailsInput, payment PaymentInput) (*model.Booking, error) {
	if details.Quantity <= 0 || details.UnitPriceCents < 0 || details.TaxTotalCents < 0 {
		return nil, repository.ErrInvalidAmount
	}
	if details.GrandTotalCents != details.UnitPriceCents*details.Quantity+details.TaxTotalCents {
		return nil, repository.ErrInvalidAmount
	}
	var booking *model.Booking
	err := e.bookings.WithTransaction(ctx, func(tx *sql.Tx) error {
		b, err := e.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case model.BookingPending:
			// legal transition
		case model.BookingCompleted, model.BookingCancelled:
			return repository.ErrTerminalState
		default:
			return repository.ErrInvalidTransition
		}
		svc, err := e.services.GetByIDTx(ctx, tx, b.ServiceID)
		if err != nil {
			return err
		}
		snapshot, err := json.Marshal(svc)
		if err != nil {
			return err
		}
		if err := e.bookings.CreateDetailsTx(ctx, tx, &model.BookingDetails{
			BookingID:       b.ID,
			ServiceSnapshot: snapshot,
			UnitPriceCents:  details.UnitPriceCents,
			Quantity:        details.Quantity,
			TaxTotalCents:   details.TaxTotalCents,
			GrandTotalCents: details.GrandTotalCents,
		}); err != nil {
			return err
		}
		if err := e.bookings.CreatePaymentTx(ctx, tx, &model.Payment{
			BookingID:    b.ID,
			AmountCents:  payment.AmountCents,
			ProcessorRef: payment.ProcessorRef,
			Status:       payment.Status,
		}); err != nil {
			return err
		}
		if err := e.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingPending, model.BookingActive); err != nil {
			return err
		}
		b.Status = model.BookingActive
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if e.confirms != nil {
		ev := queue.NewBookingConfirmedEvent(booking, details.GrandTotalCents, e.now().UTC())
		if pubErr := e.confirms.PublishBookingConfirmed(ctx, ev); pubErr != nil {
			log.Printf("engine: publish booking confirmed failed: %v", pubErr)
		}
	}
	return booking, nil
}

// CompleteBooking transitions an ACTIVE booking whose scheduled date
// has arrived to COMPLETED. Slots stay BOOKED as a historical record;
// past windows simply never match availability queries again.
// Completing a future booking is rejected with
// repository.ErrInvalidTransition.
func (e *ReservationEngine) CompleteBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	var booking *model.Booking
	err := e.bookings.WithTransaction(ctx, func(tx *sql.Tx) error {
		b, err := e.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case model.BookingActive:
			// legal transition
		case model.BookingCompleted, model.BookingCancelled:
			return repository.ErrTerminalState
		default:
			return repository.ErrInvalidTransition
		}
		if b.ScheduledDate.After(e.now().UTC()) {
			return repository.ErrInvalidTransition
		}
		if err := e.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingActive, model.BookingCompleted); err != nil {
			return err
		}
		b.Status = model.BookingCompleted
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBooking transitions a PENDING or ACTIVE booking to CANCELLED
// and reverts every slot it holds to AVAILABLE in the same
// transaction. Cancelling an already-CANCELLED booking is an
// idempotent no-op so two racing cancel requests cannot trip over
// each other; a COMPLETED booking yields
// repository.ErrTerminalState. When a payment exists a refund-intent
// event is emitted after commit without blocking the transition.
func (e *ReservationEngine) CancelBooking(ctx context.Context, bookingID uint64, reason string) (*model.Booking, error) {
	var booking *model.Booking
	var refund *queue.RefundIntentEvent
	err := e.bookings.WithTransaction(ctx, func(tx *sql.Tx) error {
		b, err := e.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case model.BookingCancelled:
			// already cancelled: same terminal state, no double release
			booking = b
			return nil
		case model.BookingCompleted:
			return repository.ErrTerminalState
		case model.BookingPending, model.BookingActive:
			// legal transition
		default:
			return repository.ErrInvalidTransition
		}
		if err := e.bookings.UpdateStatusTx(ctx, tx, b.ID, b.Status, model.BookingCancelled); err != nil {
			return err
		}
		if _, err := e.slots.ReleaseByBookingTx(ctx, tx, b.ID); err != nil {
			return err
		}
		pay, err := e.bookings.GetPaymentTx(ctx, tx, b.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if pay != nil {
			ev := queue.NewRefundIntentEvent(b, pay, reason, e.now().UTC())
			refund = &ev
		}
		b.Status = model.BookingCancelled
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refund != nil && e.refunds != nil {
		if pubErr := e.refunds.PublishRefundIntent(ctx, *refund); pubErr != nil {
			log.Printf("engine: publish refund intent failed: %v", pubErr)
		}
	}
	return booking, nil
}

// ReleaseExpiredHolds cancels PENDING bookings older than the hold
// TTL that never received a payment, reverting their slots to
// AVAILABLE. Each booking is swept in its own transaction so one
// failure does not pin the rest. Returns the number of bookings
// actually cancelled; candidates that changed state since selection
// are skipped and not counted.
func (e *ReservationEngine) ReleaseExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-e.holdTTL)
	ids, err := e.bookings.FindExpiredPending(ctx, cutoff, e.sweepCap)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		swept, err := e.expireHold(ctx, id)
		if err != nil {
			log.Printf("engine: expire hold %d failed: %v", id, err)
			continue
		}
		if swept {
			count++
		}
	}
	return count, nil
}

// expireHold cancels a single expired hold. The candidate list was
// computed outside any transaction, so the booking is re-read here:
// only a still-PENDING, still-unpaid booking is cancelled. One that
// was confirmed, cancelled or paid between selection and this call is
// left untouched.
func (e *ReservationEngine) expireHold(ctx context.Context, bookingID uint64) (bool, error) {
	swept := false
	err := e.bookings.WithTransaction(ctx, func(tx *sql.Tx) error {
		b, err := e.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		if b.Status != model.BookingPending {
			return nil
		}
		if _, err := e.bookings.GetPaymentTx(ctx, tx, b.ID); err == nil {
			return nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := e.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingPending, model.BookingCancelled); err != nil {
			return err
		}
		if _, err := e.slots.ReleaseByBookingTx(ctx, tx, b.ID); err != nil {
			return err
		}
		swept = true
		return nil
	})
	return swept, err
}

// dedupe drops zero and duplicate ids while preserving order.
func dedupe(ids []uint64) []uint64 {
	unique := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	return unique
}
