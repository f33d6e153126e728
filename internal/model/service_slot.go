package model

import "time"

// Slot statuses. AVAILABLE and BOOKED flip back and forth under the
// reservation engine only; BLOCKED is a vendor-initiated manual hold
// reachable from AVAILABLE and is never tied to a booking.
const (
	SlotAvailable = "AVAILABLE"
	SlotBooked    = "BOOKED"
	SlotBlocked   = "BLOCKED"
)

// ServiceSlot is one bookable time window of a service. At most one
// live booking may reference a slot at a time; the pairing invariant
// is BookingID != nil exactly when Status == BOOKED. Slots are
// created when a vendor publishes availability and are never
// hard-deleted while booked.
//
// Fields:
//  ID          – primary key identifier.
//  ServiceID   – owning service.
//  BookingID   – booking currently holding the slot (nil unless BOOKED).
//  StartTime   – window start (UTC); strictly before EndTime.
//  EndTime     – window end (UTC).
//  Status      – AVAILABLE, BOOKED or BLOCKED.
//  IsRecurring – whether the slot was generated from a recurring rule.
//  CreatedAt   – when the row was inserted.
//  UpdatedAt   – last modification timestamp.
type ServiceSlot struct {
	ID          uint64    // service_slots.id
	ServiceID   uint64    // service_slots.service_id
	BookingID   *uint64   // service_slots.booking_id (nullable)
	StartTime   time.Time // service_slots.start_time
	EndTime     time.Time // service_slots.end_time
	Status      string    // service_slots.status
	IsRecurring bool      // service_slots.is_recurring
	CreatedAt   time.Time // service_slots.created_at
	UpdatedAt   time.Time // service_slots.updated_at
}
