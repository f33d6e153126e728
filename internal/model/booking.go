package model

import (
	"encoding/json"
	"time"
)

// Booking statuses. PENDING and ACTIVE are the live states that may
// still hold slots; COMPLETED and CANCELLED are terminal and accept
// no further transitions.
const (
	BookingPending   = "PENDING"
	BookingActive    = "ACTIVE"
	BookingCompleted = "COMPLETED"
	BookingCancelled = "CANCELLED"
)

// Booking is the reservation aggregate root. It is created in
// PENDING by the reservation engine, confirmed to ACTIVE once a
// payment result is recorded, and finishes in COMPLETED or
// CANCELLED. Slots reference the booking through their booking_id
// back-reference.
//
// Fields:
//  ID            – primary key identifier.
//  CustomerID    – user who placed the booking.
//  ServiceID     – service being booked.
//  Status        – PENDING, ACTIVE, COMPLETED or CANCELLED.
//  ScheduledDate – the day the service is to be delivered (UTC).
//  CreatedAt     – creation timestamp; drives hold expiry for PENDING.
//  UpdatedAt     – last modification timestamp.
type Booking struct {
	ID            uint64    // bookings.id
	CustomerID    uint64    // bookings.customer_id
	ServiceID     uint64    // bookings.service_id
	Status        string    // bookings.status
	ScheduledDate time.Time // bookings.scheduled_date
	CreatedAt     time.Time // bookings.created_at
	UpdatedAt     time.Time // bookings.updated_at
}

// BookingDetails is the immutable financial snapshot captured once
// at confirmation. The service snapshot preserves the service row
// as it looked at booking time for audit, even if the vendor later
// edits the service. Amounts are integer cents and must satisfy
// GrandTotalCents == UnitPriceCents*Quantity + TaxTotalCents.
//
// Fields:
//  BookingID       – owning booking (1:1).
//  ServiceSnapshot – opaque JSON copy of the service at confirmation.
//  UnitPriceCents  – price per unit in cents.
//  Quantity        – number of units booked.
//  TaxTotalCents   – total tax in cents.
//  GrandTotalCents – unit*quantity+tax, verified at creation.
//  CreatedAt       – when the snapshot was written.
type BookingDetails struct {
	BookingID       uint64          // booking_details.booking_id
	ServiceSnapshot json.RawMessage // booking_details.service_snapshot (JSON column)
	UnitPriceCents  int64           // booking_details.unit_price_cents
	Quantity        int64           // booking_details.quantity
	TaxTotalCents   int64           // booking_details.tax_total_cents
	GrandTotalCents int64           // booking_details.grand_total_cents
	CreatedAt       time.Time       // booking_details.created_at
}

// Payment records an already-obtained processor result for a
// booking. The engine never talks to the processor itself; the
// presence of this row is what permits the PENDING to ACTIVE
// transition. Status carries the processor's free-form state string.
//
// Fields:
//  ID           – primary key identifier.
//  BookingID    – owning booking (1:1).
//  AmountCents  – captured amount in cents.
//  ProcessorRef – external processor's reference for the charge.
//  Status       – free-form status string from the processor.
//  CreatedAt    – when the result was recorded.
type Payment struct {
	ID           uint64    // payments.id
	BookingID    uint64    // payments.booking_id
	AmountCents  int64     // payments.amount_cents
	ProcessorRef string    // payments.processor_ref
	Status       string    // payments.status
	CreatedAt    time.Time // payments.created_at
}
