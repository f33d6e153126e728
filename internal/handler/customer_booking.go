package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-slot-booking/internal/engine"
	"github.com/iliyamo/marketplace-slot-booking/internal/repository"
)

// BookingHandler exposes the booking lifecycle to customers. All
// state transitions go through the reservation engine; the handler
// only binds requests, enforces that callers act on their own
// bookings, and translates engine errors into HTTP responses.
type BookingHandler struct {
	Engine   *engine.ReservationEngine
	Bookings *repository.BookingRepo
}

func NewBookingHandler(eng *engine.ReservationEngine, bookings *repository.BookingRepo) *BookingHandler {
	if eng == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: eng, Bookings: bookings}
}

type createBookingReq struct {
	ServiceID     uint64    `json:"service_id"`
	SlotIDs       []uint64  `json:"slot_ids"`
	ScheduledDate time.Time `json:"scheduled_date"`
}

type confirmBookingReq struct {
	UnitPriceCents  int64  `json:"unit_price_cents"`
	Quantity        int64  `json:"quantity"`
	TaxTotalCents   int64  `json:"tax_total_cents"`
	GrandTotalCents int64  `json:"grand_total_cents"`
	AmountCents     int64  `json:"amount_cents"`
	ProcessorRef    string `json:"processor_ref"`
	PaymentStatus   string `json:"payment_status"`
}

type cancelBookingReq struct {
	Reason string `json:"reason"`
}

// Create handles POST /v1/bookings. It reserves the requested slots
// atomically; when any slot was grabbed first by another customer the
// whole request fails with 409 and nothing is held.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ServiceID == 0 || len(req.SlotIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "service_id and slot_ids are required"})
	}
	if req.ScheduledDate.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_date is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Engine.CreateBooking(ctx, uid, req.ServiceID, req.SlotIDs, req.ScheduledDate)
	if err != nil {
		if errors.Is(err, engine.ErrNoSlots) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_ids are required"})
		}
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, newBookingView(b))
}

// Confirm handles POST /v1/bookings/:id/confirm. The client sends the
// priced line and the processor result it already obtained; the engine
// verifies the arithmetic, snapshots the service, and activates the
// booking in one transaction.
func (h *BookingHandler) Confirm(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req confirmBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.ownsBooking(ctx, id, uid); err != nil {
		return domainError(c, err)
	}

	b, err := h.Engine.ConfirmBooking(ctx, id,
		engine.BookingDetailsInput{
			UnitPriceCents:  req.UnitPriceCents,
			Quantity:        req.Quantity,
			TaxTotalCents:   req.TaxTotalCents,
			GrandTotalCents: req.GrandTotalCents,
		},
		engine.PaymentInput{
			AmountCents:  req.AmountCents,
			ProcessorRef: req.ProcessorRef,
			Status:       req.PaymentStatus,
		})
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}

// Complete handles POST /v1/bookings/:id/complete. Only an ACTIVE
// booking whose scheduled date has passed can be completed.
func (h *BookingHandler) Complete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.ownsBooking(ctx, id, uid); err != nil {
		return domainError(c, err)
	}

	b, err := h.Engine.CompleteBooking(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}

// Cancel handles POST /v1/bookings/:id/cancel. Cancelling releases
// every held slot back to AVAILABLE; when a payment exists a refund
// intent is queued for the external processor. Repeating the call on
// an already cancelled booking succeeds without side effects.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req cancelBookingReq
	_ = c.Bind(&req) // reason is optional
	if req.Reason == "" {
		req.Reason = "customer cancelled"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.ownsBooking(ctx, id, uid); err != nil {
		return domainError(c, err)
	}

	b, err := h.Engine.CancelBooking(ctx, id, req.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}

// List handles GET /v1/bookings and returns the caller's bookings
// with their reserved windows and grand totals.
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Bookings.ListByCustomer(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}

// Get handles GET /v1/bookings/:id and returns the booking together
// with its details and payment when those exist.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if b.CustomerID != uid {
		// do not reveal other customers' bookings
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	resp := echo.Map{"booking": newBookingView(b)}
	if d, err := h.Bookings.GetDetails(ctx, id); err == nil {
		resp["details"] = echo.Map{
			"service_snapshot":  d.ServiceSnapshot,
			"unit_price_cents":  d.UnitPriceCents,
			"quantity":          d.Quantity,
			"tax_total_cents":   d.TaxTotalCents,
			"grand_total_cents": d.GrandTotalCents,
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if p, err := h.Bookings.GetPayment(ctx, id); err == nil {
		resp["payment"] = echo.Map{
			"id":            p.ID,
			"amount_cents":  p.AmountCents,
			"processor_ref": p.ProcessorRef,
			"status":        p.Status,
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// ownsBooking reports whether the booking exists and belongs to the
// caller. Missing and foreign bookings are indistinguishable to the
// client: both come back as ErrNotFound.
func (h *BookingHandler) ownsBooking(ctx context.Context, bookingID, uid uint64) error {
	b, err := h.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.CustomerID != uid {
		return repository.ErrNotFound
	}
	return nil
}
