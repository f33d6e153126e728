package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
)

type slotSpec struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsRecurring bool      `json:"is_recurring"`
}

type publishSlotsReq struct {
	ServiceID uint64     `json:"service_id"`
	Slots     []slotSpec `json:"slots"`
}

// PublishSlots handles POST /v1/vendor/slots and inserts a batch of
// AVAILABLE windows for one of the vendor's services. Every window
// must have start before end; the batch is rejected as a whole when
// any entry is malformed so a partial schedule never appears.
func (h *VendorHandler) PublishSlots(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req publishSlotsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ServiceID == 0 || len(req.Slots) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "service_id and slots are required"})
	}
	for _, s := range req.Slots {
		if s.StartTime.IsZero() || s.EndTime.IsZero() || !s.StartTime.Before(s.EndTime) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each slot needs start_time before end_time"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	svc, err := h.Services.GetByID(ctx, req.ServiceID)
	if err != nil {
		return domainError(c, err)
	}
	if svc.VendorID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	slots := make([]model.ServiceSlot, 0, len(req.Slots))
	for _, s := range req.Slots {
		slots = append(slots, model.ServiceSlot{
			ServiceID:   req.ServiceID,
			StartTime:   s.StartTime.UTC(),
			EndTime:     s.EndTime.UTC(),
			Status:      model.SlotAvailable,
			IsRecurring: s.IsRecurring,
		})
	}
	if err := h.Slots.CreateBulk(ctx, slots); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create slots failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": len(slots)})
}

// ListServiceSlots handles GET /v1/vendor/services/:id/slots and
// returns every slot of the service regardless of status, so vendors
// see their full schedule including booked and blocked windows.
func (h *VendorHandler) ListServiceSlots(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	svc, err := h.Services.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if svc.VendorID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	items, err := h.Slots.ListByService(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]slotView, 0, len(items))
	for _, s := range items {
		out = append(out, newSlotView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": out})
}

// BlockSlot handles POST /v1/vendor/slots/:id/block. Only an
// AVAILABLE slot can be blocked; a BOOKED one belongs to a customer
// and must be freed through cancellation instead.
func (h *VendorHandler) BlockSlot(c echo.Context) error {
	return h.swapSlot(c, func(ctx context.Context, slotID uint64) error {
		return h.Slots.Block(ctx, slotID)
	})
}

// UnblockSlot handles POST /v1/vendor/slots/:id/unblock and returns a
// BLOCKED slot to AVAILABLE.
func (h *VendorHandler) UnblockSlot(c echo.Context) error {
	return h.swapSlot(c, func(ctx context.Context, slotID uint64) error {
		return h.Slots.Unblock(ctx, slotID)
	})
}

// swapSlot verifies the caller owns the slot's service, then applies
// the status change and maps conflicts onto 409.
func (h *VendorHandler) swapSlot(c echo.Context, apply func(ctx context.Context, slotID uint64) error) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ownerID, err := h.Slots.ServiceOwnerID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if ownerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := apply(ctx, id); err != nil {
		return domainError(c, err)
	}
	slot, err := h.Slots.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, newSlotView(*slot))
}
