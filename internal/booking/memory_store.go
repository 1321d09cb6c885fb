package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stayzen/stayzen/internal/payment"
)

// MemoryStore is an in-memory booking store for demo/development mode.
type MemoryStore struct {
	bookings map[string]*Booking
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory booking store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]*Booking),
	}
}

func (m *MemoryStore) Create(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bookings[b.ID] = b
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[b.ID]; !ok {
		return ErrBookingNotFound
	}
	m.bookings[b.ID] = b
	return nil
}

func (m *MemoryStore) UpdatePaymentStatus(ctx context.Context, id string, status payment.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.PaymentStatus = status
	b.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListDueForRelease(ctx context.Context, now time.Time, offset time.Duration, limit int) ([]*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Booking
	for _, b := range m.bookings {
		if b.DueForRelease(now, offset) {
			cp := *b
			result = append(result, &cp)
		}
	}
	// Oldest checkout first so long-overdue bookings are not starved by limit.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CheckOut.Before(result[j].CheckOut)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
