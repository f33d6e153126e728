package engine

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
	"github.com/iliyamo/marketplace-slot-booking/internal/queue"
	"github.com/iliyamo/marketplace-slot-booking/internal/repository"
)

// memStore is an in-memory implementation of the engine's store
// interfaces. WithTransaction serializes callers with a mutex and
// snapshots all state up front, restoring it when fn fails, which
// gives the same all-or-nothing visibility the SQL repositories get
// from database transactions. The *sql.Tx arguments are always nil.
type memStore struct {
	mu        sync.Mutex
	slots     map[uint64]model.ServiceSlot
	bookings  map[uint64]model.Booking
	details   map[uint64]model.BookingDetails
	payments  map[uint64]model.Payment
	services  map[uint64]model.Service
	nextID    uint64
	clock     func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		slots:    make(map[uint64]model.ServiceSlot),
		bookings: make(map[uint64]model.Booking),
		details:  make(map[uint64]model.BookingDetails),
		payments: make(map[uint64]model.Payment),
		services: make(map[uint64]model.Service),
		nextID:   1,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *memStore) addService(s model.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
}

func (m *memStore) addSlot(s model.ServiceSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.ID] = s
}

func (m *memStore) slot(id uint64) model.ServiceSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *memStore) booking(id uint64) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func snapshot[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots, bookings := snapshot(m.slots), snapshot(m.bookings)
	details, payments := snapshot(m.details), snapshot(m.payments)
	if err := fn(nil); err != nil {
		m.slots, m.bookings = slots, bookings
		m.details, m.payments = details, payments
		return err
	}
	return nil
}

// ----- SlotStore -----

func (m *memStore) GetForBookingTx(ctx context.Context, tx *sql.Tx, slotIDs []uint64) ([]model.ServiceSlot, error) {
	out := make([]model.ServiceSlot, 0, len(slotIDs))
	for _, id := range slotIDs {
		if s, ok := m.slots[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) CompareAndSwapStatusTx(ctx context.Context, tx *sql.Tx, slotID uint64, expectedStatus, newStatus string, bookingID *uint64) error {
	s, ok := m.slots[slotID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.Status != expectedStatus {
		return repository.ErrSlotConflict
	}
	s.Status = newStatus
	s.BookingID = bookingID
	m.slots[slotID] = s
	return nil
}

func (m *memStore) ReleaseByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]uint64, error) {
	var freed []uint64
	for id, s := range m.slots {
		if s.BookingID != nil && *s.BookingID == bookingID && s.Status == model.SlotBooked {
			s.Status = model.SlotAvailable
			s.BookingID = nil
			m.slots[id] = s
			freed = append(freed, id)
		}
	}
	return freed, nil
}

// ----- BookingStore -----

func (m *memStore) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	b.ID = m.nextID
	m.nextID++
	b.CreatedAt = m.clock()
	b.UpdatedAt = b.CreatedAt
	m.bookings[b.ID] = *b
	return nil
}

func (m *memStore) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *memStore) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, expectedStatus, newStatus string) error {
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != expectedStatus {
		return repository.ErrInvalidTransition
	}
	b.Status = newStatus
	b.UpdatedAt = m.clock()
	m.bookings[id] = b
	return nil
}

func (m *memStore) CreateDetailsTx(ctx context.Context, tx *sql.Tx, d *model.BookingDetails) error {
	d.CreatedAt = m.clock()
	m.details[d.BookingID] = *d
	return nil
}

func (m *memStore) CreatePaymentTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = m.clock()
	m.payments[p.BookingID] = *p
	return nil
}

func (m *memStore) GetPaymentTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Payment, error) {
	p, ok := m.payments[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for id, b := range m.bookings {
		if len(ids) >= limit {
			break
		}
		if b.Status != model.BookingPending {
			continue
		}
		if b.CreatedAt.After(cutoff) {
			continue
		}
		if _, paid := m.payments[id]; paid {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ----- ServiceStore -----

// memServiceStore wraps memStore because GetByIDTx already names the
// booking accessor on the store itself.
type memServiceStore struct{ m *memStore }

func (s memServiceStore) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Service, error) {
	svc, ok := s.m.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &svc, nil
}

// sweepRaceStore interposes on candidate selection so a test can run
// work between FindExpiredPending returning and the per-booking
// cancel transactions, the way a concurrent request would land.
type sweepRaceStore struct {
	*memStore
	afterSelect func(ids []uint64)
}

func (s *sweepRaceStore) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	ids, err := s.memStore.FindExpiredPending(ctx, cutoff, limit)
	if err == nil && s.afterSelect != nil {
		s.afterSelect(ids)
	}
	return ids, err
}

// memSink records published events.
type memSink struct {
	mu        sync.Mutex
	refunds   []queue.RefundIntentEvent
	confirmed []queue.BookingConfirmedEvent
}

func (s *memSink) PublishRefundIntent(ctx context.Context, ev queue.RefundIntentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunds = append(s.refunds, ev)
	return nil
}

func (s *memSink) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = append(s.confirmed, ev)
	return nil
}
