package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
	"github.com/iliyamo/marketplace-slot-booking/internal/repository"
)

// VendorHandler bundles repositories for vendors to manage their
// services and slots.
type VendorHandler struct {
	Services *repository.ServiceRepo
	Slots    *repository.SlotRepo
}

func NewVendorHandler(services *repository.ServiceRepo, slots *repository.SlotRepo) *VendorHandler {
	if services == nil || slots == nil {
		panic("nil repository passed to NewVendorHandler")
	}
	return &VendorHandler{Services: services, Slots: slots}
}

type createServiceReq struct {
	CategoryID        uint64          `json:"category_id"`
	UnitID            uint64          `json:"unit_id"`
	BasePriceCents    int64           `json:"base_price_cents"`
	DynamicAttributes json.RawMessage `json:"dynamic_attributes"`
}

// CreateService handles POST /v1/vendor/services. New services start
// active and immediately show up in the public catalog.
func (h *VendorHandler) CreateService(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createServiceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CategoryID == 0 || req.UnitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category_id and unit_id are required"})
	}
	if req.BasePriceCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "base_price_cents must not be negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	svc := &model.Service{
		VendorID:          uid,
		CategoryID:        req.CategoryID,
		UnitID:            req.UnitID,
		BasePriceCents:    req.BasePriceCents,
		IsActive:          true,
		DynamicAttributes: req.DynamicAttributes,
	}
	if err := h.Services.Create(ctx, svc); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create service failed"})
	}
	return c.JSON(http.StatusCreated, newServiceView(*svc))
}

// ListMyServices handles GET /v1/vendor/services.
func (h *VendorHandler) ListMyServices(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Services.ListByVendor(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]serviceView, 0, len(items))
	for _, s := range items {
		out = append(out, newServiceView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"services": out})
}

type setActiveReq struct {
	Active *bool `json:"active"`
}

// SetServiceActive handles PATCH /v1/vendor/services/:id/active and
// toggles catalog visibility. Deactivation hides the service from
// browsing but never touches existing bookings or slots.
func (h *VendorHandler) SetServiceActive(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service id"})
	}
	var req setActiveReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Services.SetActive(ctx, id, uid, *req.Active); err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_active": *req.Active})
}
