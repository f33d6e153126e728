package model

import (
	"encoding/json"
	"time"
)

// Service is a vendor-owned catalog entry that customers book time
// against. A service never gets hard-deleted while open bookings
// reference it; vendors retire it by clearing IsActive instead.
//
// Fields:
//  ID                – primary key identifier.
//  VendorID          – user who owns and publishes the service.
//  CategoryID        – taxonomy reference managed elsewhere.
//  UnitID            – pricing unit reference (per hour, per session, …).
//  BasePriceCents    – list price in integer cents.
//  IsActive          – soft-deactivation flag.
//  DynamicAttributes – opaque vendor-defined JSON; never introspected here.
//  CreatedAt         – when the row was inserted.
//  UpdatedAt         – last modification timestamp.
type Service struct {
	ID                uint64          // services.id
	VendorID          uint64          // services.vendor_id
	CategoryID        uint64          // services.category_id
	UnitID            uint64          // services.unit_id
	BasePriceCents    int64           // services.base_price_cents
	IsActive          bool            // services.is_active
	DynamicAttributes json.RawMessage // services.dynamic_attributes (JSON column)
	CreatedAt         time.Time       // services.created_at
	UpdatedAt         time.Time       // services.updated_at
}
