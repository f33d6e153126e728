package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-slot-booking/internal/repository"
)

// PublicHandler serves the unauthenticated catalog: active services
// and their open availability. These endpoints sit behind the redis
// response cache because they take the bulk of read traffic.
type PublicHandler struct {
	Services *repository.ServiceRepo
	Slots    *repository.SlotRepo
}

func NewPublicHandler(services *repository.ServiceRepo, slots *repository.SlotRepo) *PublicHandler {
	if services == nil || slots == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{Services: services, Slots: slots}
}

// ListServices handles GET /v1/services and returns the active catalog.
func (h *PublicHandler) ListServices(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Services.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]serviceView, 0, len(items))
	for _, s := range items {
		out = append(out, newServiceView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"services": out})
}

// ListAvailability handles GET /v1/services/:id/slots?from=&to= and
// returns the AVAILABLE slots of a service inside the window. Bounds
// are RFC 3339; an omitted "from" means now and an omitted "to" means
// thirty days out. Booked and blocked windows never appear here.
func (h *PublicHandler) ListAvailability(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}

	now := time.Now().UTC()
	from := now
	to := now.Add(30 * 24 * time.Hour)
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from, want RFC3339"})
		}
		from = t.UTC()
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to, want RFC3339"})
		}
		to = t.UTC()
	}
	if !from.Before(to) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be before to"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	svc, err := h.Services.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if !svc.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	items, err := h.Slots.FindAvailable(ctx, id, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]slotView, 0, len(items))
	for _, s := range items {
		out = append(out, newSlotView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"service_id": id, "slots": out})
}
