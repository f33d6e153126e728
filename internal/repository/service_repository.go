package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
)

// ServiceRepo provides data access to the services table. Services
// are soft-deactivated, never deleted, because historical bookings
// keep referencing them.
type ServiceRepo struct {
	db *sql.DB
}

// NewServiceRepo returns a new ServiceRepo bound to the given database.
func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

const serviceColumns = `id, vendor_id, category_id, unit_id, base_price_cents, is_active, dynamic_attributes, created_at, updated_at`

func scanService(row interface{ Scan(...interface{}) error }) (model.Service, error) {
	var s model.Service
	var attrs []byte
	err := row.Scan(&s.ID, &s.VendorID, &s.CategoryID, &s.UnitID,
		&s.BasePriceCents, &s.IsActive, &attrs, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Service{}, err
	}
	s.DynamicAttributes = attrs
	return s, nil
}

// Create inserts a service. On success the generated ID is populated
// on the provided record. Empty dynamic attributes are stored as an
// empty JSON object so reads never see NULL.
func (r *ServiceRepo) Create(ctx context.Context, s *model.Service) error {
	attrs := s.DynamicAttributes
	if len(attrs) == 0 {
		attrs = []byte("{}")
	}
	const q = `INSERT INTO services (vendor_id, category_id, unit_id, base_price_cents, is_active, dynamic_attributes)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.VendorID, s.CategoryID, s.UnitID,
		s.BasePriceCents, s.IsActive, []byte(attrs))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID returns a service by id. ErrNotFound when it does not exist.
func (r *ServiceRepo) GetByID(ctx context.Context, id uint64) (*model.Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services WHERE id = ?`
	s, err := scanService(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByIDTx is GetByID inside an open transaction. The engine uses it
// at confirmation to capture the service snapshot consistently with
// the rest of the confirm writes.
func (r *ServiceRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services WHERE id = ?`
	s, err := scanService(tx.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActive returns all active services ordered by id. The public
// browse endpoint serves this list behind the response cache.
func (r *ServiceRepo) ListActive(ctx context.Context) ([]model.Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services WHERE is_active = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	services := make([]model.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

// ListByVendor returns all services owned by a vendor, including
// deactivated ones, ordered by id.
func (r *ServiceRepo) ListByVendor(ctx context.Context, vendorID uint64) ([]model.Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services WHERE vendor_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	services := make([]model.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

// SetActive flips the soft-deactivation flag for a service owned by
// the given vendor. ErrNotFound when the service does not exist and
// ErrForbidden when it belongs to someone else.
func (r *ServiceRepo) SetActive(ctx context.Context, serviceID, vendorID uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE services SET is_active = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND vendor_id = ?`,
		active, serviceID, vendorID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var ownerID uint64
	err = r.db.QueryRowContext(ctx, `SELECT vendor_id FROM services WHERE id = ?`, serviceID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if ownerID != vendorID {
		return ErrForbidden
	}
	// Owned but the flag already had the requested value.
	return nil
}
