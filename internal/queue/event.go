// Package queue defines message payloads exchanged over the message
// broker and the publisher/consumer plumbing around them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
)

// Queue names. Both queues are declared durable and messages are
// published persistent so intents survive broker restarts.
const (
	RefundIntentQueue     = "booking.refund-intent"
	BookingConfirmedQueue = "booking.confirmed"
)

// RefundIntentEvent is published when a paid booking is cancelled.
// The actual processor call is an external collaborator; this event
// only records that a refund is owed. EventID makes redeliveries
// detectable downstream.
type RefundIntentEvent struct {
	EventID      string `json:"event_id"`
	BookingID    uint64 `json:"booking_id"`
	CustomerID   uint64 `json:"customer_id"`
	PaymentID    uint64 `json:"payment_id"`
	ProcessorRef string `json:"processor_ref"`
	AmountCents  int64  `json:"amount_cents"`
	Reason       string `json:"reason"`
	RequestedAt  string `json:"requested_at"`
}

// NewRefundIntentEvent builds a refund intent for a cancelled booking
// and its recorded payment.
func NewRefundIntentEvent(b *model.Booking, p *model.Payment, reason string, at time.Time) RefundIntentEvent {
	return RefundIntentEvent{
		EventID:      uuid.NewString(),
		BookingID:    b.ID,
		CustomerID:   b.CustomerID,
		PaymentID:    p.ID,
		ProcessorRef: p.ProcessorRef,
		AmountCents:  p.AmountCents,
		Reason:       reason,
		RequestedAt:  at.Format(time.RFC3339),
	}
}

// BookingConfirmedEvent is published when a booking is successfully
// confirmed. It carries enough information for downstream consumers
// to log, notify or trigger analytics without querying the primary
// database.
type BookingConfirmedEvent struct {
	EventID         string `json:"event_id"`
	BookingID       uint64 `json:"booking_id"`
	CustomerID      uint64 `json:"customer_id"`
	ServiceID       uint64 `json:"service_id"`
	ScheduledDate   string `json:"scheduled_date"`
	GrandTotalCents int64  `json:"grand_total_cents"`
	ConfirmedAt     string `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the confirmation event for an
// ACTIVE booking.
func NewBookingConfirmedEvent(b *model.Booking, grandTotalCents int64, at time.Time) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		EventID:         uuid.NewString(),
		BookingID:       b.ID,
		CustomerID:      b.CustomerID,
		ServiceID:       b.ServiceID,
		ScheduledDate:   b.ScheduledDate.UTC().Format(time.RFC3339),
		GrandTotalCents: grandTotalCents,
		ConfirmedAt:     at.Format(time.RFC3339),
	}
}
