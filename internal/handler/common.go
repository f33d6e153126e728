package handler // handler defines http handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
	"github.com/iliyamo/marketplace-slot-booking/internal/repository"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter; zero means invalid.
func pathID(c echo.Context, name string) uint64 {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// domainError maps repository and engine sentinels onto HTTP responses
// so every handler speaks the same error dialect. Unknown errors
// become a generic 500 without leaking internals.
func domainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrSlotConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot no longer available"})
	case errors.Is(err, repository.ErrTerminalState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already finalized"})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "transition not allowed"})
	case errors.Is(err, repository.ErrInvalidAmount):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "amounts do not add up"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// ----- shared response shapes -----

type bookingView struct {
	ID            uint64    `json:"id"`
	CustomerID    uint64    `json:"customer_id"`
	ServiceID     uint64    `json:"service_id"`
	Status        string    `json:"status"`
	ScheduledDate time.Time `json:"scheduled_date"`
	CreatedAt     time.Time `json:"created_at"`
}

func newBookingView(b *model.Booking) bookingView {
	return bookingView{
		ID:            b.ID,
		CustomerID:    b.CustomerID,
		ServiceID:     b.ServiceID,
		Status:        b.Status,
		ScheduledDate: b.ScheduledDate,
		CreatedAt:     b.CreatedAt,
	}
}

type slotView struct {
	ID          uint64    `json:"id"`
	ServiceID   uint64    `json:"service_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	IsRecurring bool      `json:"is_recurring"`
}

func newSlotView(s model.ServiceSlot) slotView {
	return slotView{
		ID:          s.ID,
		ServiceID:   s.ServiceID,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Status:      s.Status,
		IsRecurring: s.IsRecurring,
	}
}

type serviceView struct {
	ID                uint64          `json:"id"`
	VendorID          uint64          `json:"vendor_id"`
	CategoryID        uint64          `json:"category_id"`
	UnitID            uint64          `json:"unit_id"`
	BasePriceCents    int64           `json:"base_price_cents"`
	IsActive          bool            `json:"is_active"`
	DynamicAttributes json.RawMessage `json:"dynamic_attributes"`
	CreatedAt         time.Time       `json:"created_at"`
}

func newServiceView(s model.Service) serviceView {
	return serviceView{
		ID:                s.ID,
		VendorID:          s.VendorID,
		CategoryID:        s.CategoryID,
		UnitID:            s.UnitID,
		BasePriceCents:    s.BasePriceCents,
		IsActive:          s.IsActive,
		DynamicAttributes: s.DynamicAttributes,
		CreatedAt:         s.CreatedAt,
	}
}
